package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meetscribe/internal/domain"
	"meetscribe/internal/ports"
)

var (
	ErrAlreadyActive       = errors.New("a recording is already active")
	ErrNoActiveRecording   = errors.New("no active recording")
	ErrRecordingIDMismatch = errors.New("recording id does not match the active recording")
)

// Config controls recording behavior.
type Config struct {
	// DeviceName selects the input device; empty means system default.
	DeviceName string
	// PollInterval is how long the chunk pump sleeps when no audio is ready.
	PollInterval time.Duration
	// StreamGrace bounds how long a stopped recording's event relay may keep
	// draining the transcription stream before the session is force-closed.
	StreamGrace time.Duration
}

// Recorder orchestrates a single active recording: hardware capture, the
// realtime transcription session, the chunk pump, and the event relay.
type Recorder struct {
	capture  ports.DeviceCapture
	provider ports.RealtimeProvider
	segments ports.SegmentStore
	events   ports.EventSink
	cfg      Config
	log      zerolog.Logger

	mu      sync.Mutex
	current *activeRecording
}

func NewRecorder(
	capture ports.DeviceCapture,
	provider ports.RealtimeProvider,
	segments ports.SegmentStore,
	events ports.EventSink,
	cfg Config,
	log zerolog.Logger,
) *Recorder {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.StreamGrace <= 0 {
		cfg.StreamGrace = 5 * time.Second
	}
	return &Recorder{
		capture:  capture,
		provider: provider,
		segments: segments,
		events:   events,
		cfg:      cfg,
		log:      log.With().Str("component", "recorder").Logger(),
	}
}

// Start opens capture and the realtime session, spawns the background pump
// and relay, and returns the new recording's id. Fails with ErrAlreadyActive
// while another recording holds the slot.
func (r *Recorder) Start(ctx context.Context, mode domain.CaptureMode) (string, error) {
	active := newActiveRecording(uuid.NewString())

	// Reserve the slot before touching hardware so a concurrent Start fails
	// fast; the lock is never held across I/O.
	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return "", ErrAlreadyActive
	}
	r.current = active
	r.mu.Unlock()

	handle, err := r.capture.Open(ports.CaptureConfig{Mode: mode, DeviceName: r.cfg.DeviceName})
	if err != nil {
		r.clearSlot(active)
		return "", err
	}

	chunks, err := handle.Start()
	if err != nil {
		handle.Stop()
		r.clearSlot(active)
		return "", err
	}

	session, err := r.provider.Connect(ctx, handle.SampleRate())
	if err != nil {
		// A failed connect must not leave an orphaned open device.
		handle.Stop()
		r.clearSlot(active)
		return "", err
	}

	// Publish the collaborators under the same lock Stop and Status read
	// them through; until ready is set the slot only blocks other starts.
	r.mu.Lock()
	active.handle = handle
	active.session = session
	active.ready = true
	r.mu.Unlock()

	go r.pumpChunks(active, chunks)
	go r.relayEvents(active)

	r.log.Info().Str("recording_id", active.id).Str("mode", string(mode)).Msg("recording started")
	r.events.RecordingStateChanged(active.id, domain.RecordingStateRecording)
	return active.id, nil
}

// Stop ends the recording identified by id and hands back the full
// accumulated buffer. The caller owns archival and the batch finishing pass.
func (r *Recorder) Stop(id string) (domain.StopResult, error) {
	r.mu.Lock()
	active := r.current
	if active == nil || !active.ready {
		// A slot still in its start handshake has no observable id yet, so
		// callers cannot legitimately address it.
		r.mu.Unlock()
		return domain.StopResult{}, ErrNoActiveRecording
	}
	if active.id != id {
		r.mu.Unlock()
		return domain.StopResult{}, ErrRecordingIDMismatch
	}
	r.current = nil
	r.mu.Unlock()

	close(active.stopRequested)
	active.handle.Stop()

	// The pump observes the stop signal (or the closed chunk channel) on its
	// next poll; joining it is what makes the buffer safe to read.
	<-active.pumpDone

	// The relay keeps draining trailing transcription events in the
	// background, but never past the grace window.
	go func() {
		select {
		case <-active.relayDone:
		case <-time.After(r.cfg.StreamGrace):
			r.log.Warn().Str("recording_id", active.id).Msg("transcription stream did not finish in time")
		}
		_ = active.session.Close()
	}()

	result := domain.StopResult{
		RecordingID: active.id,
		Samples:     active.samples,
		SampleRate:  active.handle.SampleRate(),
	}
	r.log.Info().
		Str("recording_id", active.id).
		Float64("duration_secs", result.DurationSecs()).
		Msg("recording stopped")
	return result, nil
}

// Status reports whether a recording is active.
func (r *Recorder) Status() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || !r.current.ready {
		return domain.Status{State: domain.RecordingStateIdle}
	}
	return domain.Status{
		State:       domain.RecordingStateRecording,
		RecordingID: r.current.id,
		Active:      true,
	}
}

// LiveTranscript returns the running transcript of the active recording, or
// an empty string when idle.
func (r *Recorder) LiveTranscript() string {
	r.mu.Lock()
	active := r.current
	if active == nil || !active.ready {
		r.mu.Unlock()
		return ""
	}
	r.mu.Unlock()
	return active.transcript.Text()
}

func (r *Recorder) clearSlot(active *activeRecording) {
	r.mu.Lock()
	if r.current == active {
		r.current = nil
	}
	r.mu.Unlock()
}
