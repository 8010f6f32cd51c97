package usecase

import (
	"meetscribe/internal/ports"
)

// activeRecording holds everything owned by one recording while it occupies
// the Recorder's slot. The samples buffer is written only by the pump
// goroutine and read by Stop after the pump has been joined.
type activeRecording struct {
	id      string
	handle  ports.CaptureHandle
	session ports.RealtimeSession

	// ready flips once handle and session are set. Until then the slot only
	// blocks other starts and is invisible to Stop and Status. Guarded by
	// the Recorder's mutex.
	ready bool

	transcript *liveTranscript

	samples []int16

	stopRequested chan struct{}
	pumpDone      chan struct{}
	relayDone     chan struct{}
}

func newActiveRecording(id string) *activeRecording {
	return &activeRecording{
		id:            id,
		transcript:    newLiveTranscript(),
		stopRequested: make(chan struct{}),
		pumpDone:      make(chan struct{}),
		relayDone:     make(chan struct{}),
	}
}
