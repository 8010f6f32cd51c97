package ports

import (
	"context"

	"meetscribe/internal/domain"
)

// CaptureConfig describes how a capture session should be opened.
type CaptureConfig struct {
	Mode       domain.CaptureMode
	DeviceName string // empty means system default input
}

// CaptureHandle is an opened hardware capture session. Start may be called
// once; Stop is idempotent and safe on a handle that never started.
type CaptureHandle interface {
	// Start begins delivering canonical chunks (16 kHz mono s16 PCM). In
	// MixedSource mode, both producers push into the same channel with no
	// ordering guarantee between them.
	Start() (<-chan []int16, error)
	Stop()
	IsCapturing() bool
	// SampleRate is the rate of the chunks emitted on the channel.
	SampleRate() int
}

// DeviceCapture opens hardware capture sessions.
type DeviceCapture interface {
	Open(cfg CaptureConfig) (CaptureHandle, error)
	ListInputDevices() ([]domain.AudioDevice, error)
}

// RealtimeSession is an active streaming transcription session. SendAudio
// never blocks past enqueueing; transmission is FIFO on an independent
// goroutine. The event channel is finite: it ends on the server's done
// event, on transport closure, or after a single error event.
type RealtimeSession interface {
	SendAudio(samples []int16)
	End()
	Events() <-chan domain.TranscriptionEvent
	Close() error
}

// RealtimeProvider performs the connect/configure handshake and returns a
// session the server has agreed to accept audio on.
type RealtimeProvider interface {
	Connect(ctx context.Context, sourceSampleRate int) (RealtimeSession, error)
}

// BatchTranscriber re-transcribes a full archived recording with optional
// diarization. Consumed only after a recording has stopped.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, audioPath string, diarize bool) (domain.BatchResult, error)
}

// Summarizer turns a full transcript into a title and a structured summary.
type Summarizer interface {
	Title(ctx context.Context, transcript string) (string, error)
	Summarize(ctx context.Context, transcript string) (domain.Summary, error)
}

// AudioArchive persists the raw accumulated PCM buffer for a recording and
// returns the path it was written to.
type AudioArchive interface {
	Save(recordingID string, samples []int16, sampleRate int) (string, error)
}

// SegmentStore is the incremental transcript index boundary. Live segments
// arrive one at a time during recording; the batch finishing pass replaces
// them wholesale with diarized ones.
type SegmentStore interface {
	SaveSegment(seg domain.Segment) (int64, error)
	ReplaceLiveSegments(recordingID string, diarized []domain.Segment) error
	Segments(recordingID string) ([]domain.Segment, error)
}

// EventSink emits backend state/events to the UI, keyed by recording id.
type EventSink interface {
	RecordingStateChanged(recordingID string, state domain.RecordingState)
	AudioLevel(recordingID string, level float64)
	TranscriptDelta(recordingID string, text string, offsetSecs float64)
	TranscriptSegment(recordingID string, seg domain.Segment)
	LanguageDetected(recordingID string, code string)
	RecordingError(recordingID string, code domain.ErrorCode, detail string)
	SummaryReady(recordingID string, title string, summary domain.Summary)
	RecordingComplete(recordingID string)
}
