package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memoai/internal/domain"
	"memoai/internal/extract"
	"memoai/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrNotRecording    = errors.New("session is not recording")
	ErrNotPaused       = errors.New("session is not paused")
)

// Config controls recording behavior.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
}

// SessionController orchestrates capture, streaming transcription,
// reconciliation and finalization for one recording session at a time.
type SessionController struct {
	audio     ports.AudioCapture
	provider  ports.TranscriptionProvider
	events    ports.EventSink
	finalizer transcriptFinalizer
	log       *zap.Logger
	cfg       Config

	mu          sync.Mutex
	current     *activeSession
	idleState   domain.SessionState
	idleMessage string
}

func NewSessionController(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	summarizer ports.Summarizer,
	history ports.HistoryStore,
	clipboard ports.Clipboard,
	events ports.EventSink,
	log *zap.Logger,
	cfg Config,
) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionController{
		audio:     audio,
		provider:  provider,
		events:    events,
		finalizer: newTranscriptFinalizer(summarizer, history, clipboard, events),
		log:       log,
		cfg:       cfg,
		idleState: domain.SessionStateIdle,
	}
}

// Start begins a new capture/transcription session. A Failed state from an
// earlier attempt is cleared; there is no automatic retry.
func (c *SessionController) Start(ctx context.Context) error {
	var previous *activeSession

	c.mu.Lock()
	if c.current != nil {
		previous = c.current
		c.current = nil
	}
	c.mu.Unlock()

	if previous != nil {
		c.stopSession(previous)
	}

	c.events.SessionStateChanged(domain.SessionStateConnecting, domain.SessionReasonConnecting)

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		c.events.SessionError(domain.ErrorCodeTransport, err.Error())
		c.enterFailed(domain.SessionReasonTransportFailed, err.Error())
		return err
	}

	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		code := domain.ErrorCodeStartup
		reason := domain.SessionReasonTransportFailed
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			code = domain.ErrorCodeDeviceUnavailable
			reason = domain.SessionReasonDeviceUnavailable
		}
		c.events.SessionError(code, err.Error())
		c.enterFailed(reason, err.Error())
		return err
	}

	active := &activeSession{
		id:         uuid.NewString(),
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		state:      domain.SessionStateRecording,
		startedAt:  time.Now(),
		reconciler: newTranscriptReconciler(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}

	c.mu.Lock()
	c.current = active
	c.idleState = domain.SessionStateIdle
	c.idleMessage = ""
	c.mu.Unlock()

	go consumeRecognitionEvents(active.stream, active.reconciler, c.events, active.eventsDone)
	go pumpAudioChunks(active.audio, active.stream, c.cfg.ChunkSize, c.events, active.audioDone)
	go c.monitorStream(active)

	reason := domain.SessionReasonRecordingStarted
	if previous != nil {
		reason = domain.SessionReasonRecordingRestarted
	}
	c.log.Info("recording session started", zap.String("session", active.id))
	c.events.SessionStateChanged(domain.SessionStateRecording, reason)
	return nil
}

// Stop ends an active session, finalizes the transcript and returns the
// result. The controller always returns to an inactive state, even when the
// provider never acknowledges the shutdown.
func (c *SessionController) Stop(ctx context.Context, notes string) (domain.StopResult, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.StopResult{}, err
	}
	if active.getState() == domain.SessionStateFailed {
		return domain.StopResult{}, ErrNoActiveSession
	}

	duration := active.elapsed()
	active.setState(domain.SessionStateStopping)
	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonFinalizing)

	if err := active.audio.Stop(); err != nil {
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, 4*time.Second)
	<-active.eventsDone
	<-active.audioDone

	transcript := active.reconciler.Snapshot()
	if transcript == "" && streamErr != nil {
		c.events.SessionError(domain.ErrorCodeTransport, streamErr.Error())
		c.finishSession(active, domain.SessionStateFailed, domain.SessionReasonTransportFailed, streamErr.Error())
		return domain.StopResult{}, streamErr
	}
	if transcript == "" {
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonNoTranscript, "")
		return domain.StopResult{}, errors.New("no transcript captured")
	}

	result, reason := c.finalizer.Finalize(ctx, transcript, notes, duration)
	c.events.FinalTranscript(result.Transcript, result.Summary)
	c.finishSession(active, domain.SessionStateIdle, reason, "")
	return result, nil
}

// Pause suppresses duration/waveform advancement. Capture and transport stay
// open; in-flight recognition events keep folding.
func (c *SessionController) Pause() error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}
	if active.getState() != domain.SessionStateRecording {
		return ErrNotRecording
	}

	active.setState(domain.SessionStatePaused)
	c.events.SessionStateChanged(domain.SessionStatePaused, domain.SessionReasonPaused)
	return nil
}

// Resume continues a paused session.
func (c *SessionController) Resume() error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}
	if active.getState() != domain.SessionStatePaused {
		return ErrNotPaused
	}

	active.setState(domain.SessionStateRecording)
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonResumed)
	return nil
}

// Abort cancels and discards an active session without finalization.
func (c *SessionController) Abort() error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}

	c.stopSession(active)
	c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded, "")
	return nil
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: c.idleState, Active: false, Message: c.idleMessage}
	}
	state := c.current.getState()
	return domain.Status{State: state, Active: true}
}

// Transcript returns the live transcript of the active session, or the
// empty string when no session is running.
func (c *SessionController) Transcript() string {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()
	if active == nil {
		return ""
	}
	return active.reconciler.Snapshot()
}

// CandidateEvents mines the live transcript for calendar suggestions.
func (c *SessionController) CandidateEvents() []domain.CandidateEvent {
	return extract.Candidates(c.Transcript(), time.Now())
}

func (c *SessionController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

// monitorStream surfaces mid-session transport failures. A provider-side
// error closes the event channel long before the user hits stop; without
// this the session would sit in Recording with a dead socket.
func (c *SessionController) monitorStream(active *activeSession) {
	<-active.eventsDone

	state := active.getState()
	if state != domain.SessionStateRecording && state != domain.SessionStatePaused {
		return
	}
	err := active.stream.Wait()
	if err == nil {
		return
	}

	c.log.Warn("transport failed mid-session", zap.String("session", active.id), zap.Error(err))
	c.events.SessionError(domain.ErrorCodeTransport, err.Error())
	active.cancel()
	_ = active.audio.Stop()
	<-active.audioDone
	c.finishSession(active, domain.SessionStateFailed, domain.SessionReasonTransportFailed, err.Error())
}

func (c *SessionController) stopSession(active *activeSession) {
	active.setState(domain.SessionStateStopping)
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	<-active.audioDone
}

func (c *SessionController) finishSession(active *activeSession, state domain.SessionState, reason domain.SessionStateReason, message string) {
	active.cancel()
	active.setState(state)

	c.mu.Lock()
	if c.current == active {
		c.current = nil
		c.idleState = domain.SessionStateIdle
		c.idleMessage = ""
		if state == domain.SessionStateFailed {
			c.idleState = domain.SessionStateFailed
			c.idleMessage = message
		}
	}
	c.mu.Unlock()

	c.events.SessionStateChanged(state, reason)
}

func (c *SessionController) enterFailed(reason domain.SessionStateReason, message string) {
	c.mu.Lock()
	c.idleState = domain.SessionStateFailed
	c.idleMessage = message
	c.mu.Unlock()
	c.events.SessionStateChanged(domain.SessionStateFailed, reason)
}
