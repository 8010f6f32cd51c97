package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"meetscribe/internal/audio"
	"meetscribe/internal/bootstrap"
	"meetscribe/internal/config"
	"meetscribe/internal/domain"
	"meetscribe/internal/ports"
	"meetscribe/internal/providers/mistral"
	"meetscribe/internal/usecase"
)

const (
	eventState    = "meetscribe:state"
	eventLevel    = "meetscribe:level"
	eventDelta    = "meetscribe:delta"
	eventSegment  = "meetscribe:segment"
	eventLanguage = "meetscribe:language"
	eventError    = "meetscribe:error"
	eventSummary  = "meetscribe:summary"
	eventComplete = "meetscribe:complete"
)

// App is the Wails application root. It implements ports.EventSink so the
// backend can push recording events straight to the frontend.
type App struct {
	ctx context.Context
	log zerolog.Logger

	recorder  *usecase.Recorder
	finalizer *usecase.Finalizer
	devices   ports.DeviceCapture
	segments  ports.SegmentStore
	cfg       config.Config
	services  bootstrap.Services
	bootErr   error
}

func NewApp(log zerolog.Logger) *App {
	return &App{log: log}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.log)
	if err != nil {
		a.bootErr = err
		a.RecordingError("", domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.recorder = services.Recorder
	a.finalizer = services.Finalizer
	a.devices = services.Devices
	a.segments = services.Segments
	a.cfg = services.Config
	a.RecordingStateChanged("", domain.RecordingStateIdle)
}

func (a *App) shutdown(_ context.Context) {
	if err := a.services.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close audio backend")
	}
}

// StartRecording begins a new recording in the given capture mode ("mic" or
// "mixed") and returns the backend status carrying the new recording id.
func (a *App) StartRecording(mode string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}

	captureMode := domain.ModeMicOnly
	if mode == string(domain.ModeMixedSource) {
		captureMode = domain.ModeMixedSource
	}

	if _, err := a.recorder.Start(a.ctx, captureMode); err != nil {
		if !errors.Is(err, usecase.ErrAlreadyActive) {
			a.RecordingError("", startErrorCode(err), err.Error())
		}
		return domain.Status{}, err
	}
	return a.recorder.Status(), nil
}

// StopRecording ends the identified recording and kicks off the finishing
// pass in the background. The returned summary is immediate; archival,
// diarization and the AI summary arrive later as events.
func (a *App) StopRecording(recordingID string) (domain.StopSummary, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopSummary{}, err
	}

	result, err := a.recorder.Stop(recordingID)
	if err != nil {
		return domain.StopSummary{}, err
	}

	go func() {
		if err := a.finalizer.Finalize(a.ctx, result); err != nil {
			a.log.Error().Err(err).Str("recording_id", result.RecordingID).Msg("finishing pass failed")
		}
	}()

	return domain.StopSummary{
		RecordingID:  result.RecordingID,
		DurationSecs: result.DurationSecs(),
	}, nil
}

// GetStatus returns the current backend status.
func (a *App) GetStatus() domain.Status {
	if a.recorder == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.RecordingStateError, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.RecordingStateIdle}
	}
	return a.recorder.Status()
}

// ListInputDevices enumerates the available capture devices.
func (a *App) ListInputDevices() ([]domain.AudioDevice, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.devices.ListInputDevices()
}

// GetLiveTranscript returns the running transcript of the active recording.
func (a *App) GetLiveTranscript() string {
	if a.recorder == nil {
		return ""
	}
	return a.recorder.LiveTranscript()
}

// GetSegments returns the stored transcript segments for a recording,
// diarized ones once the finishing pass has replaced the live set.
func (a *App) GetSegments(recordingID string) ([]domain.Segment, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.segments.Segments(recordingID)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":      "Mistral",
		"realtimeModel": a.cfg.Mistral.RealtimeModel,
		"batchModel":    a.cfg.Mistral.BatchModel,
		"chatModel":     a.cfg.Mistral.ChatModel,
		"language":      a.cfg.Mistral.Language,
		"audioInput":    a.cfg.Audio.InputDevice,
		"dataDir":       a.cfg.Audio.DataDir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.recorder == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// RecordingStateChanged emits recording lifecycle updates to the frontend.
func (a *App) RecordingStateChanged(recordingID string, state domain.RecordingState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]string{
		"recordingId": recordingID,
		"state":       string(state),
		"message":     stateMessage(state),
	})
}

// AudioLevel emits a loudness reading for UI metering.
func (a *App) AudioLevel(recordingID string, level float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLevel, map[string]any{
		"recordingId": recordingID,
		"level":       level,
	})
}

// TranscriptDelta emits live incremental transcript text.
func (a *App) TranscriptDelta(recordingID string, text string, offsetSecs float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventDelta, map[string]any{
		"recordingId": recordingID,
		"text":        text,
		"offsetSecs":  offsetSecs,
	})
}

// TranscriptSegment emits a finished transcript segment.
func (a *App) TranscriptSegment(recordingID string, seg domain.Segment) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSegment, map[string]any{
		"recordingId": recordingID,
		"segment":     seg,
	})
}

// LanguageDetected emits the detected audio language.
func (a *App) LanguageDetected(recordingID string, code string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLanguage, map[string]string{
		"recordingId": recordingID,
		"language":    code,
	})
}

// RecordingError emits backend errors to the UI.
func (a *App) RecordingError(recordingID string, code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"recordingId": recordingID,
		"code":        string(code),
		"message":     errorMessage(code, detail),
		"detail":      detail,
	})
}

// SummaryReady emits the generated title and structured summary.
func (a *App) SummaryReady(recordingID string, title string, summary domain.Summary) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSummary, map[string]any{
		"recordingId": recordingID,
		"title":       title,
		"summary":     summary,
	})
}

// RecordingComplete signals that the finishing pass is done and stored
// segments are final.
func (a *App) RecordingComplete(recordingID string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventComplete, map[string]string{
		"recordingId": recordingID,
	})
}

func startErrorCode(err error) domain.ErrorCode {
	switch {
	case errors.Is(err, audio.ErrNoInputDevice), errors.Is(err, audio.ErrSystemAudioUnsupported):
		return domain.ErrorCodeDevice
	case errors.Is(err, mistral.ErrHandshakeFailed):
		return domain.ErrorCodeConnect
	default:
		return domain.ErrorCodeStartup
	}
}

func stateMessage(state domain.RecordingState) string {
	switch state {
	case domain.RecordingStateIdle:
		return "Ready"
	case domain.RecordingStateRecording:
		return "Recording"
	case domain.RecordingStateFinalizing:
		return "Processing recording..."
	case domain.RecordingStateError:
		return "Recording failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDevice:
		return "Audio device unavailable"
	case domain.ErrorCodeConnect:
		return "Could not connect to the transcription service"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeArchive:
		return "Failed to save the recording"
	case domain.ErrorCodeSummary:
		return "Summary generation failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
