package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"meetscribe/internal/domain"
	"meetscribe/internal/ports"
)

// Finalizer runs the finishing pass after a recording stops: archive the raw
// audio, re-transcribe it in batch with diarization, swap the live segments
// for the diarized ones, and generate a title and summary. Archival comes
// first so the audio survives even when every later step fails.
type Finalizer struct {
	archive    ports.AudioArchive
	batch      ports.BatchTranscriber
	summarizer ports.Summarizer
	segments   ports.SegmentStore
	events     ports.EventSink
	diarize    bool
	log        zerolog.Logger
}

func NewFinalizer(
	archive ports.AudioArchive,
	batch ports.BatchTranscriber,
	summarizer ports.Summarizer,
	segments ports.SegmentStore,
	events ports.EventSink,
	diarize bool,
	log zerolog.Logger,
) *Finalizer {
	return &Finalizer{
		archive:    archive,
		batch:      batch,
		summarizer: summarizer,
		segments:   segments,
		events:     events,
		diarize:    diarize,
		log:        log.With().Str("component", "finalizer").Logger(),
	}
}

// Finalize processes one stopped recording. Only a failed archive aborts the
// pass; transcription and summary failures are reported and skipped over.
func (f *Finalizer) Finalize(ctx context.Context, rec domain.StopResult) error {
	f.events.RecordingStateChanged(rec.RecordingID, domain.RecordingStateFinalizing)

	path, err := f.archive.Save(rec.RecordingID, rec.Samples, rec.SampleRate)
	if err != nil {
		f.events.RecordingError(rec.RecordingID, domain.ErrorCodeArchive, err.Error())
		f.events.RecordingStateChanged(rec.RecordingID, domain.RecordingStateError)
		return fmt.Errorf("failed to archive recording %s: %w", rec.RecordingID, err)
	}
	f.log.Info().Str("recording_id", rec.RecordingID).Str("path", path).Msg("recording archived")

	transcript := f.retranscribe(ctx, rec.RecordingID, path)
	if transcript != "" {
		f.summarize(ctx, rec.RecordingID, transcript)
	}

	f.events.RecordingStateChanged(rec.RecordingID, domain.RecordingStateIdle)
	f.events.RecordingComplete(rec.RecordingID)
	return nil
}

// retranscribe runs the batch pass and returns the best transcript it can:
// the batch text when the pass succeeds, otherwise whatever the live stream
// left in the segment store.
func (f *Finalizer) retranscribe(ctx context.Context, recordingID, audioPath string) string {
	result, err := f.batch.Transcribe(ctx, audioPath, f.diarize)
	if err != nil {
		f.log.Error().Err(err).Str("recording_id", recordingID).Msg("batch transcription failed")
		f.events.RecordingError(recordingID, domain.ErrorCodeTranscription, err.Error())
		return f.liveFallback(recordingID)
	}

	for i := range result.Segments {
		result.Segments[i].RecordingID = recordingID
	}
	if err := f.segments.ReplaceLiveSegments(recordingID, result.Segments); err != nil {
		f.log.Error().Err(err).Str("recording_id", recordingID).Msg("failed to replace live segments")
		f.events.RecordingError(recordingID, domain.ErrorCodeTranscription, err.Error())
	}

	if result.Text != "" {
		return result.Text
	}
	return joinSegmentTexts(result.Segments)
}

func (f *Finalizer) liveFallback(recordingID string) string {
	segments, err := f.segments.Segments(recordingID)
	if err != nil {
		return ""
	}
	return joinSegmentTexts(segments)
}

func (f *Finalizer) summarize(ctx context.Context, recordingID, transcript string) {
	title, titleErr := f.summarizer.Title(ctx, transcript)
	if titleErr != nil {
		f.log.Error().Err(titleErr).Str("recording_id", recordingID).Msg("title generation failed")
	}

	summary, summaryErr := f.summarizer.Summarize(ctx, transcript)
	if summaryErr != nil {
		f.log.Error().Err(summaryErr).Str("recording_id", recordingID).Msg("summary generation failed")
	}

	if titleErr != nil && summaryErr != nil {
		f.events.RecordingError(recordingID, domain.ErrorCodeSummary, "title and summary generation failed")
		return
	}
	f.events.SummaryReady(recordingID, title, summary)
}

func joinSegmentTexts(segments []domain.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
