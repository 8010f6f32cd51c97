package usecase

import (
	"strings"
	"sync"
	"time"

	"meetscribe/internal/domain"
)

// liveTranscript accumulates the realtime stream's output: finished segments,
// the delta tail the server has not yet folded into a segment, and the
// stream's final full text once it arrives.
type liveTranscript struct {
	mu       sync.Mutex
	segments []string
	tail     strings.Builder
	final    string
}

func newLiveTranscript() *liveTranscript {
	return &liveTranscript{}
}

func (t *liveTranscript) AddDelta(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tail.WriteString(text)
}

func (t *liveTranscript) AddSegment(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text = strings.TrimSpace(text)
	if text != "" {
		t.segments = append(t.segments, text)
	}
	t.tail.Reset()
}

func (t *liveTranscript) SetFinal(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.final = strings.TrimSpace(text)
}

// Text returns the best transcript available right now: the final text when
// the stream has completed, otherwise the finished segments plus the pending
// delta tail.
func (t *liveTranscript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.final != "" {
		return t.final
	}
	joined := strings.Join(t.segments, " ")
	tail := strings.TrimSpace(t.tail.String())
	if tail == "" {
		return joined
	}
	if joined == "" {
		return tail
	}
	return joined + " " + tail
}

// relayEvents drains the realtime session's event stream, maintaining the
// live transcript, persisting live segments, and forwarding everything to
// the UI sink. It exits when the stream ends.
func (r *Recorder) relayEvents(active *activeRecording) {
	defer close(active.relayDone)
	started := time.Now()

	for event := range active.session.Events() {
		switch event.Kind {
		case domain.EventLanguage:
			r.events.LanguageDetected(active.id, event.Language)

		case domain.EventDelta:
			if event.Text == "" {
				continue
			}
			active.transcript.AddDelta(event.Text)
			r.events.TranscriptDelta(active.id, event.Text, time.Since(started).Seconds())

		case domain.EventSegment:
			seg := domain.Segment{
				RecordingID: active.id,
				Text:        event.Text,
				Start:       event.Start,
				End:         event.End,
			}
			id, err := r.segments.SaveSegment(seg)
			if err != nil {
				r.log.Error().Err(err).Str("recording_id", active.id).Msg("failed to persist live segment")
			} else {
				seg.ID = id
			}
			active.transcript.AddSegment(event.Text)
			r.events.TranscriptSegment(active.id, seg)

		case domain.EventDone:
			active.transcript.SetFinal(event.Text)

		case domain.EventError:
			r.events.RecordingError(active.id, domain.ErrorCodeTranscription, event.Message)
		}
	}
}
