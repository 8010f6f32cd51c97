package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"meetscribe/internal/domain"
)

func TestFinalizerHappyPath(t *testing.T) {
	t.Parallel()

	archive := &fakeArchive{path: "/data/rec-1.wav"}
	batch := &fakeBatch{result: domain.BatchResult{
		Text: "Alice: hello. Bob: hi.",
		Segments: []domain.Segment{
			{Text: "hello.", Start: 0, End: 1, Speaker: "speaker_1", Diarized: true},
			{Text: "hi.", Start: 1, End: 2, Speaker: "speaker_2", Diarized: true},
		},
	}}
	summarizer := &fakeSummarizer{title: "Greeting Sync", summary: domain.Summary{KeyPoints: []string{"greetings"}}}
	store := newFakeSegmentStore()
	sink := newFakeRecorderSink()

	f := NewFinalizer(archive, batch, summarizer, store, sink, true, zerolog.Nop())
	rec := domain.StopResult{RecordingID: "rec-1", Samples: []int16{1, 2, 3}, SampleRate: 16000}
	if err := f.Finalize(context.Background(), rec); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if !batch.diarize {
		t.Fatalf("expected a diarized batch pass")
	}
	if batch.path != "/data/rec-1.wav" {
		t.Fatalf("batch should consume the archived file, got %q", batch.path)
	}

	replaced := store.replaced["rec-1"]
	if len(replaced) != 2 || replaced[0].RecordingID != "rec-1" {
		t.Fatalf("live segments not replaced with diarized ones: %+v", replaced)
	}

	summaries := sink.snapshotSummaries()
	if len(summaries) != 1 || summaries[0].title != "Greeting Sync" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
	if summarizer.lastTranscript != "Alice: hello. Bob: hi." {
		t.Fatalf("summarizer got wrong transcript: %q", summarizer.lastTranscript)
	}

	if got := sink.snapshotCompletes(); len(got) != 1 || got[0] != "rec-1" {
		t.Fatalf("expected completion event, got %v", got)
	}
	states := sink.snapshotStates()
	if len(states) < 2 || states[0] != domain.RecordingStateFinalizing || states[len(states)-1] != domain.RecordingStateIdle {
		t.Fatalf("unexpected state sequence: %v", states)
	}
}

func TestFinalizerArchiveFailureAborts(t *testing.T) {
	t.Parallel()

	batch := &fakeBatch{}
	sink := newFakeRecorderSink()
	f := NewFinalizer(
		&fakeArchive{err: errors.New("disk full")},
		batch,
		&fakeSummarizer{},
		newFakeSegmentStore(),
		sink,
		true,
		zerolog.Nop(),
	)

	rec := domain.StopResult{RecordingID: "rec-2", Samples: []int16{1}, SampleRate: 16000}
	if err := f.Finalize(context.Background(), rec); err == nil {
		t.Fatalf("expected archive failure to abort the pass")
	}

	if batch.calls != 0 {
		t.Fatalf("batch must not run when archival failed")
	}
	errs := sink.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeArchive {
		t.Fatalf("expected archive error event, got %+v", errs)
	}
	states := sink.snapshotStates()
	if states[len(states)-1] != domain.RecordingStateError {
		t.Fatalf("expected terminal error state, got %v", states)
	}
	if len(sink.snapshotCompletes()) != 0 {
		t.Fatalf("no completion event on aborted pass")
	}
}

func TestFinalizerBatchFailureFallsBackToLiveSegments(t *testing.T) {
	t.Parallel()

	store := newFakeSegmentStore()
	if _, err := store.SaveSegment(domain.Segment{RecordingID: "rec-3", Text: "live one."}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := store.SaveSegment(domain.Segment{RecordingID: "rec-3", Text: "live two."}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	summarizer := &fakeSummarizer{title: "t", summary: domain.Summary{}}
	sink := newFakeRecorderSink()
	f := NewFinalizer(
		&fakeArchive{path: "/data/rec-3.wav"},
		&fakeBatch{err: errors.New("api down")},
		summarizer,
		store,
		sink,
		false,
		zerolog.Nop(),
	)

	rec := domain.StopResult{RecordingID: "rec-3", Samples: []int16{1}, SampleRate: 16000}
	if err := f.Finalize(context.Background(), rec); err != nil {
		t.Fatalf("batch failure must not abort the pass: %v", err)
	}

	errs := sink.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeTranscription {
		t.Fatalf("expected transcription error event, got %+v", errs)
	}
	if summarizer.lastTranscript != "live one. live two." {
		t.Fatalf("expected live-segment fallback transcript, got %q", summarizer.lastTranscript)
	}
	if store.count() != 2 {
		t.Fatalf("live segments must survive a failed batch pass")
	}
	if len(sink.snapshotCompletes()) != 1 {
		t.Fatalf("expected completion event")
	}
}

func TestFinalizerSummaryFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	sink := newFakeRecorderSink()
	f := NewFinalizer(
		&fakeArchive{path: "/data/rec-4.wav"},
		&fakeBatch{result: domain.BatchResult{Text: "something was said"}},
		&fakeSummarizer{titleErr: errors.New("quota"), summaryErr: errors.New("quota")},
		newFakeSegmentStore(),
		sink,
		true,
		zerolog.Nop(),
	)

	rec := domain.StopResult{RecordingID: "rec-4", Samples: []int16{1}, SampleRate: 16000}
	if err := f.Finalize(context.Background(), rec); err != nil {
		t.Fatalf("summary failure must not abort the pass: %v", err)
	}

	errs := sink.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeSummary {
		t.Fatalf("expected summary error event, got %+v", errs)
	}
	if len(sink.snapshotSummaries()) != 0 {
		t.Fatalf("no summary event when both generations failed")
	}
	if len(sink.snapshotCompletes()) != 1 {
		t.Fatalf("expected completion event despite summary failure")
	}
}

func TestFinalizerSkipsSummaryForEmptyTranscript(t *testing.T) {
	t.Parallel()

	summarizer := &fakeSummarizer{}
	sink := newFakeRecorderSink()
	f := NewFinalizer(
		&fakeArchive{path: "/data/rec-5.wav"},
		&fakeBatch{result: domain.BatchResult{}},
		summarizer,
		newFakeSegmentStore(),
		sink,
		true,
		zerolog.Nop(),
	)

	rec := domain.StopResult{RecordingID: "rec-5", Samples: nil, SampleRate: 16000}
	if err := f.Finalize(context.Background(), rec); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer must not run on an empty transcript")
	}
	if len(sink.snapshotCompletes()) != 1 {
		t.Fatalf("expected completion event")
	}
}

type fakeArchive struct {
	mu   sync.Mutex
	path string
	err  error
	last domain.StopResult
}

func (f *fakeArchive) Save(recordingID string, samples []int16, sampleRate int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.last = domain.StopResult{RecordingID: recordingID, Samples: samples, SampleRate: sampleRate}
	return f.path, nil
}

type fakeBatch struct {
	mu      sync.Mutex
	result  domain.BatchResult
	err     error
	calls   int
	path    string
	diarize bool
}

func (f *fakeBatch) Transcribe(_ context.Context, audioPath string, diarize bool) (domain.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.path = audioPath
	f.diarize = diarize
	if f.err != nil {
		return domain.BatchResult{}, f.err
	}
	return f.result, nil
}

type fakeSummarizer struct {
	mu             sync.Mutex
	title          string
	summary        domain.Summary
	titleErr       error
	summaryErr     error
	calls          int
	lastTranscript string
}

func (f *fakeSummarizer) Title(_ context.Context, transcript string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTranscript = transcript
	if f.titleErr != nil {
		return "", f.titleErr
	}
	return f.title, nil
}

func (f *fakeSummarizer) Summarize(_ context.Context, transcript string) (domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTranscript = transcript
	if f.summaryErr != nil {
		return domain.Summary{}, f.summaryErr
	}
	return f.summary, nil
}
