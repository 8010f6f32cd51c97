package domain

// CaptureMode selects which hardware sources feed a recording. It is chosen
// at session start and is immutable for the recording's lifetime.
type CaptureMode string

const (
	// ModeMicOnly captures a single input device.
	ModeMicOnly CaptureMode = "mic"
	// ModeMixedSource captures the system-audio loopback source alongside the
	// microphone; the two producers interleave by arrival order.
	ModeMixedSource CaptureMode = "mixed"
)

// RecordingState models the recording lifecycle as seen by the UI.
type RecordingState string

const (
	RecordingStateIdle       RecordingState = "idle"
	RecordingStateRecording  RecordingState = "recording"
	RecordingStateFinalizing RecordingState = "finalizing"
	RecordingStateError      RecordingState = "error"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeDevice        ErrorCode = "device"
	ErrorCodeConnect       ErrorCode = "connect"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeArchive       ErrorCode = "archive"
	ErrorCodeSummary       ErrorCode = "summary"
)

// EventKind tags incremental transcription output from the realtime session.
type EventKind string

const (
	EventLanguage EventKind = "language"
	EventDelta    EventKind = "delta"
	EventSegment  EventKind = "segment"
	EventDone     EventKind = "done"
	EventError    EventKind = "error"
)

// TranscriptionEvent is one decoded realtime event. Which fields are set
// depends on Kind: Language for EventLanguage, Text for EventDelta and
// EventDone, Text/Start/End for EventSegment, Message for EventError.
type TranscriptionEvent struct {
	Kind     EventKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Language string    `json:"language,omitempty"`
	Start    float64   `json:"start,omitempty"`
	End      float64   `json:"end,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Segment is one span of transcript, either from the live stream
// (Diarized=false) or from the batch finishing pass (Diarized=true).
type Segment struct {
	ID          int64   `json:"id"`
	RecordingID string  `json:"recordingId"`
	Text        string  `json:"text"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Speaker     string  `json:"speaker,omitempty"`
	Diarized    bool    `json:"diarized"`
}

// BatchResult is the vendor batch endpoint's response: the full text plus
// timestamped (optionally speaker-attributed) segments.
type BatchResult struct {
	Text     string
	Segments []Segment
}

// Summary is the structured meeting summary produced by the chat endpoint.
type Summary struct {
	KeyPoints   []string     `json:"key_points"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
}

type ActionItem struct {
	Description string  `json:"description"`
	Assignee    *string `json:"assignee"`
}

// StopResult hands the full accumulated recording back to the caller, who is
// responsible for archiving it and triggering the batch finishing pass.
type StopResult struct {
	RecordingID string
	Samples     []int16
	SampleRate  int
}

// DurationSecs is the recording length implied by the accumulated samples.
func (r StopResult) DurationSecs() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(len(r.Samples)) / float64(r.SampleRate)
}

// StopSummary is the UI-facing result of stopping a recording; the raw
// buffer never crosses the binding boundary.
type StopSummary struct {
	RecordingID  string  `json:"recordingId"`
	DurationSecs float64 `json:"durationSecs"`
	AudioPath    string  `json:"audioPath,omitempty"`
}

// Status summarizes the current runtime status.
type Status struct {
	State       RecordingState `json:"state"`
	RecordingID string         `json:"recordingId,omitempty"`
	Active      bool           `json:"active"`
	Message     string         `json:"message,omitempty"`
}

// AudioDevice describes an enumerable hardware input device.
type AudioDevice struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}
