package bootstrap

import (
	"github.com/rs/zerolog"

	"meetscribe/internal/audio"
	"meetscribe/internal/config"
	"meetscribe/internal/ports"
	"meetscribe/internal/providers/mistral"
	"meetscribe/internal/store"
	"meetscribe/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Recorder  *usecase.Recorder
	Finalizer *usecase.Finalizer
	Devices   ports.DeviceCapture
	Segments  ports.SegmentStore
	Config    config.Config

	engine *audio.Engine
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, log zerolog.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	engine := audio.NewEngine(log)
	provider := mistral.NewProvider(mistral.Config{
		APIKey:        cfg.Mistral.APIKey,
		APIBaseURL:    cfg.Mistral.APIBaseURL,
		RealtimeModel: cfg.Mistral.RealtimeModel,
		BatchModel:    cfg.Mistral.BatchModel,
		ChatModel:     cfg.Mistral.ChatModel,
		Language:      cfg.Mistral.Language,
	}, log)
	segments := store.NewMemory()

	recorder := usecase.NewRecorder(
		engine,
		provider,
		segments,
		eventSink,
		usecase.Config{
			DeviceName:   cfg.Audio.InputDevice,
			PollInterval: cfg.Recording.PollInterval,
			StreamGrace:  cfg.Recording.StreamGrace,
		},
		log,
	)

	finalizer := usecase.NewFinalizer(
		audio.NewArchive(cfg.Audio.DataDir, log),
		provider,
		provider,
		segments,
		eventSink,
		cfg.Recording.Diarize,
		log,
	)

	return Services{
		Recorder:  recorder,
		Finalizer: finalizer,
		Devices:   engine,
		Segments:  segments,
		Config:    cfg,
		engine:    engine,
	}, nil
}

// Close releases the audio backend.
func (s Services) Close() error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Close()
}
