// Package audio owns the hardware capture side: device enumeration, format
// negotiation, and the callback pipeline that turns whatever an input stream
// delivers into canonical 16 kHz mono s16 chunks on a channel.
package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"meetscribe/internal/domain"
	"meetscribe/internal/ports"
)

var (
	// ErrNoInputDevice means no hardware input device exists at all.
	ErrNoInputDevice = errors.New("no audio input device available")
	// ErrSystemAudioUnsupported means the current platform or backend cannot
	// provide system-audio (loopback) capture. Expected on some platforms;
	// callers should surface it, not crash.
	ErrSystemAudioUnsupported = errors.New("system-audio capture is not supported on this platform")
	// ErrAlreadyStarted is returned when Start is called twice on a handle.
	ErrAlreadyStarted = errors.New("capture already started")
	// ErrStopped is returned when Start is called on a stopped handle; a new
	// handle must be opened to capture again.
	ErrStopped = errors.New("capture handle is stopped")
)

// chunkBuffer is the depth of the shared output channel. Callbacks never
// block on it; a full buffer drops the chunk.
const chunkBuffer = 64

// Engine opens hardware capture sessions through miniaudio. The underlying
// context is initialized lazily on first use.
type Engine struct {
	log zerolog.Logger

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "audio").Logger()}
}

func (e *Engine) context() (*malgo.AllocatedContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		return e.ctx, nil
	}
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	e.ctx = ctx
	return ctx, nil
}

// Close releases the audio context. Open handles must be stopped first.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return nil
	}
	err := e.ctx.Uninit()
	e.ctx.Free()
	e.ctx = nil
	return err
}

// ListInputDevices enumerates capture devices by name.
func (e *Engine) ListInputDevices() ([]domain.AudioDevice, error) {
	ctx, err := e.context()
	if err != nil {
		return nil, err
	}
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate input devices: %w", err)
	}
	devices := make([]domain.AudioDevice, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, domain.AudioDevice{
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// Open resolves the input device (by name if given and present, system
// default otherwise), negotiates its stream format, and in MixedSource mode
// additionally prepares a system-audio loopback stream. The returned handle
// is opened but not yet capturing.
func (e *Engine) Open(cfg ports.CaptureConfig) (ports.CaptureHandle, error) {
	ctx, err := e.context()
	if err != nil {
		return nil, err
	}

	info, err := e.resolveInputDevice(ctx, cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	format := e.negotiate(ctx, info)

	h := &captureHandle{
		log: e.log,
		out: make(chan []int16, chunkBuffer),
	}

	micConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	micConfig.Capture.Format = format.encoding
	micConfig.Capture.Channels = uint32(format.channels)
	micConfig.Capture.DeviceID = info.ID.Pointer()
	micConfig.SampleRate = uint32(format.sampleRate)
	micConfig.PeriodSizeInMilliseconds = 20

	mic, err := malgo.InitDevice(ctx.Context, micConfig, h.callbacks(format))
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %q: %w", info.Name(), err)
	}
	h.devices = append(h.devices, mic)

	if cfg.Mode == domain.ModeMixedSource {
		// System audio comes from the default playback device in loopback
		// mode, requested directly at a canonical-friendly stereo format;
		// the callback pipeline downmixes it like any other producer.
		loopFormat := streamFormat{encoding: malgo.FormatS16, channels: 2, sampleRate: CanonicalSampleRate}
		loopConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
		loopConfig.Capture.Format = loopFormat.encoding
		loopConfig.Capture.Channels = uint32(loopFormat.channels)
		loopConfig.SampleRate = uint32(loopFormat.sampleRate)
		loopConfig.PeriodSizeInMilliseconds = 20

		loop, err := malgo.InitDevice(ctx.Context, loopConfig, h.callbacks(loopFormat))
		if err != nil {
			mic.Uninit()
			return nil, fmt.Errorf("%w: %v", ErrSystemAudioUnsupported, err)
		}
		h.devices = append(h.devices, loop)
	}

	e.log.Info().
		Str("device", info.Name()).
		Str("mode", string(cfg.Mode)).
		Int("rate", format.sampleRate).
		Int("channels", format.channels).
		Msg("capture opened")

	return h, nil
}

func (e *Engine) resolveInputDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate input devices: %w", err)
	}
	if len(infos) == 0 {
		return malgo.DeviceInfo{}, ErrNoInputDevice
	}

	if name != "" {
		for _, info := range infos {
			if strings.EqualFold(info.Name(), name) {
				return info, nil
			}
		}
		e.log.Warn().Str("device", name).Msg("configured input device not found, using default")
	}

	for _, info := range infos {
		if info.IsDefault != 0 {
			return info, nil
		}
	}
	return infos[0], nil
}

func (e *Engine) negotiate(ctx *malgo.AllocatedContext, info malgo.DeviceInfo) streamFormat {
	full, err := ctx.DeviceInfo(malgo.Capture, info.ID, malgo.Shared)
	if err != nil {
		e.log.Warn().Err(err).Str("device", info.Name()).Msg("device format query failed, requesting canonical format")
		return streamFormat{encoding: malgo.FormatS16, channels: 1, sampleRate: CanonicalSampleRate}
	}
	count := int(full.FormatCount)
	if count > len(full.Formats) {
		count = len(full.Formats)
	}
	format := selectFormat(full.Formats[:count])
	if format.sampleRate != CanonicalSampleRate {
		e.log.Info().
			Str("device", info.Name()).
			Int("rate", format.sampleRate).
			Msg("device does not offer 16 kHz, capturing at native rate with resample")
	}
	return format
}

// captureHandle owns the lifecycle of one or two hardware streams feeding a
// shared chunk channel. Unopened -> Opened -> Capturing -> Stopped; Stopped
// is terminal.
type captureHandle struct {
	log     zerolog.Logger
	devices []*malgo.Device
	out     chan []int16

	// capturing is the single flag hardware callbacks consult; it is flipped
	// from control goroutines and must never block the callback thread.
	capturing atomic.Bool

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
}

// callbacks builds the data callback for one producer. Each producer owns
// its own conversion pipeline and pushes into the shared channel; across
// producers chunks interleave by arrival order with no synchronization.
func (h *captureHandle) callbacks(format streamFormat) malgo.DeviceCallbacks {
	return malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if !h.capturing.Load() {
				return
			}
			chunk := convertChunk(input, format)
			if len(chunk) == 0 {
				return
			}
			select {
			case h.out <- chunk:
			default:
				// Consumer gone or behind; drop rather than block the
				// driver thread.
			}
		},
	}
}

func (h *captureHandle) Start() (<-chan []int16, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrStopped
	}
	if h.started {
		return nil, ErrAlreadyStarted
	}

	h.capturing.Store(true)
	for i, dev := range h.devices {
		if err := dev.Start(); err != nil {
			h.capturing.Store(false)
			for _, started := range h.devices[:i] {
				_ = started.Stop()
			}
			return nil, fmt.Errorf("failed to start capture stream: %w", err)
		}
	}
	h.started = true
	return h.out, nil
}

// Stop flips the capturing flag first so callbacks go quiet, then tears down
// each hardware stream. Idempotent, and safe on a handle that never started.
func (h *captureHandle) Stop() {
	h.stopOnce.Do(func() {
		h.capturing.Store(false)

		h.mu.Lock()
		h.stopped = true
		devices := h.devices
		h.devices = nil
		h.mu.Unlock()

		for _, dev := range devices {
			_ = dev.Stop()
			dev.Uninit()
		}
		close(h.out)
	})
}

func (h *captureHandle) IsCapturing() bool {
	return h.capturing.Load()
}

// SampleRate is the rate of the chunks emitted on the channel. The callback
// pipeline resamples every producer to the canonical rate.
func (h *captureHandle) SampleRate() int {
	return CanonicalSampleRate
}
