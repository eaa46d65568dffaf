package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"crosstalk/internal/bootstrap"
	"crosstalk/internal/config"
	"crosstalk/internal/domain"
	"crosstalk/internal/usecase"
)

const (
	eventState      = "crosstalk:state"
	eventPartial    = "crosstalk:partial"
	eventTranscript = "crosstalk:transcript"
	eventError      = "crosstalk:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.CallController
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.CallError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.CallStateChanged(domain.CallStateIdle, domain.CallReasonReady)
}

// StartCall begins a translation call between the two given languages.
func (a *App) StartCall(primaryLanguage, secondaryLanguage string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if _, err := a.controller.StartCall(a.ctx, primaryLanguage, secondaryLanguage); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// EndCall ends the active call and releases all media resources.
func (a *App) EndCall() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.EndCall(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrNoActiveCall) {
			return a.controller.Status(), nil
		}
		// Persistence errors were already surfaced; the call still ended.
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// SetMuted gates the outbound microphone during a call.
func (a *App) SetMuted(muted bool) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.SetMuted(muted); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// ResumePlayback retries remote-audio output after a blocked start.
func (a *App) ResumePlayback() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.ResumePlayback(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// GetStatus returns the current call status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.CallStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.CallStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"model":            a.cfg.Realtime.Model,
		"voice":            a.cfg.Realtime.Voice,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// CallStateChanged emits call lifecycle updates to the frontend.
func (a *App) CallStateChanged(state domain.CallState, reason domain.CallStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": stateReasonMessage(reason),
	})
}

// PartialTranscript emits a live, still-accumulating utterance.
func (a *App) PartialTranscript(role domain.Role, text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{
		"role": string(role),
		"text": text,
	})
}

// TranscriptFinalized emits one finalized utterance.
func (a *App) TranscriptFinalized(entry domain.TranscriptEntry) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, entry)
}

// CallError emits backend errors to the UI.
func (a *App) CallError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func stateReasonMessage(reason domain.CallStateReason) string {
	switch reason {
	case domain.CallReasonReady:
		return "Ready"
	case domain.CallReasonStarting:
		return "Connecting..."
	case domain.CallReasonConnected:
		return "Call connected"
	case domain.CallReasonConnectionFailed:
		return "Connection failed"
	case domain.CallReasonConnectionLost:
		return "Connection lost"
	case domain.CallReasonEnded:
		return "Call ended"
	case domain.CallReasonMuted:
		return "Microphone muted"
	case domain.CallReasonUnmuted:
		return "Microphone live"
	case domain.CallReasonPlaybackBlocked:
		return "Tap to enable audio"
	case domain.CallReasonPlaybackResumed:
		return "Audio playing"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeMedia:
		return "Microphone unavailable"
	case domain.ErrorCodeCredential:
		return "Could not authorize the call"
	case domain.ErrorCodeSignaling:
		return "Call setup was rejected"
	case domain.ErrorCodeTransport:
		return "Call connection failed"
	case domain.ErrorCodeChannel:
		return "Call channel closed"
	case domain.ErrorCodePersistence:
		return "Call history could not be saved"
	case domain.ErrorCodePlayback:
		return "Audio output unavailable"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
