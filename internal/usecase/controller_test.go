package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"memoai/internal/domain"
	"memoai/internal/ports"
)

func newTestController(
	capture ports.AudioCapture,
	provider ports.TranscriptionProvider,
	summarizer ports.Summarizer,
	history ports.HistoryStore,
	clipboard ports.Clipboard,
	events ports.EventSink,
) *SessionController {
	return NewSessionController(capture, provider, summarizer, history, clipboard, events, nil, Config{ChunkSize: 512})
}

func TestSessionControllerStartStopSuccess(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	streamSession := newFakeStreamingSession()
	streamSession.events <- domain.RecognitionEvent{Kind: domain.RecognitionKindPartial, Text: "hello"}
	streamSession.events <- domain.RecognitionEvent{Kind: domain.RecognitionKindFinal, Text: "Hello world."}
	provider := &fakeProvider{sessions: []ports.StreamingSession{streamSession}}
	summarizer := &fakeSummarizer{summary: "- greeted the world"}
	history := &fakeHistory{}
	clipboard := &fakeClipboard{}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		provider, summarizer, history, clipboard, events,
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := controller.Stop(context.Background(), "my notes")
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if result.Transcript != "Hello world." {
		t.Fatalf("unexpected transcript: %q", result.Transcript)
	}
	if result.Summary != "- greeted the world" {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
	if !result.Saved || result.HistoryID == "" {
		t.Fatalf("expected saved history entry, got %+v", result)
	}
	if !result.Copied {
		t.Fatalf("expected copied=true")
	}
	if clipboard.lastText != "Hello world." {
		t.Fatalf("clipboard did not receive transcript")
	}

	entries := history.snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
	if entries[0].Notes != "my notes" || entries[0].Transcript != "Hello world." {
		t.Fatalf("unexpected history entry: %+v", entries[0])
	}

	transcripts := events.snapshotTranscripts()
	if len(transcripts) == 0 || transcripts[len(transcripts)-1] != "Hello world." {
		t.Fatalf("expected transcript updates, got %v", transcripts)
	}
	if len(events.snapshotFinals()) != 1 {
		t.Fatalf("expected one final transcript event")
	}

	states := events.snapshotStates()
	if len(states) < 4 {
		t.Fatalf("expected at least 4 state transitions, got %d", len(states))
	}
	if states[0].state != domain.SessionStateConnecting {
		t.Fatalf("unexpected first state: %s", states[0].state)
	}
	if states[1].reason != domain.SessionReasonRecordingStarted {
		t.Fatalf("unexpected second reason: %s", states[1].reason)
	}
	if states[len(states)-2].reason != domain.SessionReasonFinalizing {
		t.Fatalf("unexpected stopping reason: %s", states[len(states)-2].reason)
	}
	if states[len(states)-1].reason != domain.SessionReasonRecordingSaved {
		t.Fatalf("unexpected final reason: %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerStopWithoutActiveSession(t *testing.T) {
	t.Parallel()

	controller := newTestController(
		&fakeAudioCapture{}, &fakeProvider{}, &fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, &fakeEventSink{},
	)

	_, err := controller.Stop(context.Background(), "")
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestSessionControllerPauseResume(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Pause(); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}

	if err := controller.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if status := controller.Status(); status.State != domain.SessionStatePaused || !status.Active {
		t.Fatalf("unexpected paused status: %+v", status)
	}
	if err := controller.Pause(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}

	if err := controller.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if status := controller.Status(); status.State != domain.SessionStateRecording {
		t.Fatalf("unexpected resumed status: %+v", status)
	}

	if err := controller.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}

	states := events.snapshotStates()
	var reasons []domain.SessionStateReason
	for _, s := range states {
		reasons = append(reasons, s.reason)
	}
	want := []domain.SessionStateReason{
		domain.SessionReasonConnecting,
		domain.SessionReasonRecordingStarted,
		domain.SessionReasonPaused,
		domain.SessionReasonResumed,
		domain.SessionReasonRecordingDiscarded,
	}
	if fmt.Sprint(reasons) != fmt.Sprint(want) {
		t.Fatalf("unexpected reasons: %v", reasons)
	}
}

func TestSessionControllerAbortLifecycle(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}

	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected discarded reason, got %s", states[len(states)-1].reason)
	}
	if status := controller.Status(); status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("unexpected status after abort: %+v", status)
	}
}

func TestSessionControllerDeviceUnavailableEntersFailed(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	events := &fakeEventSink{}
	captureErr := fmt.Errorf("opening microphone: %w", domain.ErrDeviceUnavailable)

	controller := newTestController(
		&fakeAudioCapture{err: captureErr},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Start(context.Background()); !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("expected device error, got %v", err)
	}

	status := controller.Status()
	if status.State != domain.SessionStateFailed || status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}

	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeDeviceUnavailable {
		t.Fatalf("expected device_unavailable error, got %+v", errs)
	}
}

func TestSessionControllerTransportFailureEntersFailed(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{},
		&fakeProvider{err: errors.New("dial refused")},
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Start(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}

	if status := controller.Status(); status.State != domain.SessionStateFailed {
		t.Fatalf("unexpected status: %+v", status)
	}

	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeTransport {
		t.Fatalf("expected transport error, got %+v", errs)
	}
}

func TestSessionControllerFreshStartClearsFailedState(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	provider := &fakeProvider{err: errors.New("dial refused")}
	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		provider,
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, &fakeEventSink{},
	)

	if err := controller.Start(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
	if status := controller.Status(); status.State != domain.SessionStateFailed {
		t.Fatalf("expected failed state, got %+v", status)
	}

	provider.err = nil
	provider.sessions = []ports.StreamingSession{streamSession}
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if status := controller.Status(); status.State != domain.SessionStateRecording {
		t.Fatalf("expected recording, got %+v", status)
	}
	_ = controller.Abort()
}

func TestSessionControllerMidSessionTransportFailure(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	streamSession.waitErr = errors.New("socket dead")
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Provider dies: event channel closes with a pending error.
	streamSession.failUpstream()

	deadline := time.After(2 * time.Second)
	for {
		if status := controller.Status(); status.State == domain.SessionStateFailed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("controller never entered failed state: %+v", controller.Status())
		case <-time.After(10 * time.Millisecond):
		}
	}

	errs := events.snapshotErrors()
	found := false
	for _, e := range errs {
		if e.code == domain.ErrorCodeTransport {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected transport error, got %+v", errs)
	}
}

func TestSessionControllerStopNoTranscript(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background(), ""); err == nil {
		t.Fatalf("expected no-transcript error")
	}

	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonNoTranscript {
		t.Fatalf("expected no_transcript reason, got %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerStopSummarizerFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	streamSession.events <- domain.RecognitionEvent{Kind: domain.RecognitionKindFinal, Text: "text"}
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		&fakeSummarizer{err: errors.New("llm down")},
		&fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background(), "")
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Summary != "" {
		t.Fatalf("expected empty summary, got %q", result.Summary)
	}
	if !result.Saved {
		t.Fatalf("expected entry saved despite summarizer failure")
	}

	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeSummarize {
		t.Fatalf("expected summarize error, got %+v", errs)
	}
}

func TestSessionControllerLiveTranscriptAndCandidates(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	streamSession.events <- domain.RecognitionEvent{Kind: domain.RecognitionKindFinal, Text: "Standup moves to May 5 at 9am."}
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		&fakeSummarizer{}, &fakeHistory{}, &fakeClipboard{}, events,
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for controller.Transcript() == "" {
		select {
		case <-deadline:
			t.Fatalf("transcript never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := controller.Transcript(); !strings.Contains(got, "May 5") {
		t.Fatalf("unexpected transcript: %q", got)
	}
	candidates := controller.CandidateEvents()
	if len(candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(candidates))
	}

	if got := events.snapshotCandidates(); len(got) == 0 {
		t.Fatalf("expected candidate updates via event sink")
	}

	_ = controller.Abort()
	if got := controller.Transcript(); got != "" {
		t.Fatalf("expected empty transcript after abort, got %q", got)
	}
}

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

type fakeProvider struct {
	sessions []ports.StreamingSession
	err      error
	calls    int
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	events  chan domain.RecognitionEvent
	waitErr error

	mu     sync.Mutex
	closed bool
	failed bool
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan domain.RecognitionEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error { return nil }

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.RecognitionEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return f.waitErr
	}
	return nil
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

// failUpstream simulates the provider dropping the connection mid-session.
func (f *fakeStreamingSession) failUpstream() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	f.failed = true
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, _ string, _ domain.SummaryStyle) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	err     error
}

func (f *fakeHistory) Append(entry domain.HistoryEntry) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append([]domain.HistoryEntry{entry}, f.entries...)
	return nil
}

func (f *fakeHistory) List() ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.HistoryEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeHistory) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
	return nil
}

func (f *fakeHistory) snapshot() []domain.HistoryEntry {
	out, _ := f.List()
	return out
}

type fakeClipboard struct {
	lastText string
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.lastText = text
	return f.err
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	transcripts []string
	candidates  [][]domain.CandidateEvent
	finals      []finalEvent
	errors      []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type finalEvent struct {
	transcript string
	summary    string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) TranscriptUpdated(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, text)
}

func (f *fakeEventSink) CandidateEventsUpdated(candidates []domain.CandidateEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, candidates)
}

func (f *fakeEventSink) FinalTranscript(transcript string, summary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals = append(f.finals, finalEvent{transcript: transcript, summary: summary})
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotTranscripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.transcripts))
	copy(out, f.transcripts)
	return out
}

func (f *fakeEventSink) snapshotCandidates() [][]domain.CandidateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]domain.CandidateEvent, len(f.candidates))
	copy(out, f.candidates)
	return out
}

func (f *fakeEventSink) snapshotFinals() []finalEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]finalEvent, len(f.finals))
	copy(out, f.finals)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}
