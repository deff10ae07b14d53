package memoai

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"memoai/internal/bootstrap"
	"memoai/internal/config"
	"memoai/internal/domain"
	"memoai/internal/ports"
	"memoai/internal/usecase"
)

const (
	eventSession    = "memoai:session"
	eventTranscript = "memoai:transcript"
	eventCandidates = "memoai:candidates"
	eventFinal      = "memoai:final"
	eventError      = "memoai:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.SessionController
	history    ports.HistoryStore
	summarizer ports.Summarizer
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.history = services.History
	a.summarizer = services.Summarizer
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

// StartRecording begins a new capture and transcription session.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopRecording ends the session, attaches the user's notes and returns the
// finalized transcript, summary and history id.
func (a *App) StopRecording(notes string) (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.controller.Stop(a.ctx, notes)
}

// PauseRecording freezes the session timer without closing the stream.
func (a *App) PauseRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Pause()
}

// ResumeRecording continues a paused session.
func (a *App) ResumeRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Resume()
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Abort(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetTranscript returns the live transcript of the active session.
func (a *App) GetTranscript() string {
	if a.controller == nil {
		return ""
	}
	return a.controller.Transcript()
}

// GetCandidateEvents returns calendar suggestions mined from the live
// transcript.
func (a *App) GetCandidateEvents() []domain.CandidateEvent {
	if a.controller == nil {
		return nil
	}
	return a.controller.CandidateEvents()
}

// Summarize produces an on-demand summary of arbitrary text, used by the
// schedule and history views.
func (a *App) Summarize(transcript string, notes string, style string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.summarizer.Summarize(a.ctx, transcript, notes, parseSummaryStyle(style))
}

// GetHistory returns saved recordings, newest first.
func (a *App) GetHistory() ([]domain.HistoryEntry, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.history.List()
}

// ClearHistory deletes all saved recordings.
func (a *App) ClearHistory() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.history.Clear()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "AssemblyAI",
		"language":         a.cfg.AssemblyAI.Language,
		"summaryModel":     a.cfg.OpenAI.Model,
		"historyFile":      a.cfg.History.Path,
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

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// TranscriptUpdated emits the reconciled live transcript.
func (a *App) TranscriptUpdated(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, map[string]string{"text": text})
}

// CandidateEventsUpdated emits freshly mined calendar suggestions.
func (a *App) CandidateEventsUpdated(candidates []domain.CandidateEvent) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCandidates, candidates)
}

// FinalTranscript emits the finalized transcript and its summary.
func (a *App) FinalTranscript(transcript string, summary string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFinal, map[string]string{
		"transcript": transcript,
		"summary":    summary,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func parseSummaryStyle(style string) domain.SummaryStyle {
	switch style {
	case string(domain.SummaryStyleHeadline):
		return domain.SummaryStyleHeadline
	case string(domain.SummaryStyleParagraph):
		return domain.SummaryStyleParagraph
	default:
		return domain.SummaryStyleBullets
	}
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready to record"
	case domain.SessionReasonConnecting:
		return "Connecting to transcription service..."
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingRestarted:
		return "Recording restarted; previous capture discarded"
	case domain.SessionReasonPaused:
		return "Recording paused"
	case domain.SessionReasonResumed:
		return "Recording resumed"
	case domain.SessionReasonFinalizing:
		return "Recording stopped. Finalizing..."
	case domain.SessionReasonRecordingSaved:
		return "Recording saved"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonDeviceUnavailable:
		return "Microphone unavailable"
	case domain.SessionReasonTransportFailed:
		return "Connection to transcription service failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDeviceUnavailable:
		return "Microphone unavailable"
	case domain.ErrorCodeTransport:
		return "Transcription connection error"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeSummarize:
		return "Summarization failed"
	case domain.ErrorCodeHistory:
		return "Could not save recording to history"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
