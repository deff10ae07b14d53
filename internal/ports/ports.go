package ports

import (
	"context"
	"io"

	"memoai/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing raw PCM16LE frames.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session. Events are
// delivered in receipt order; the channel closes once the stream ends.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.RecognitionEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// Summarizer condenses a transcript into the requested summary style.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, notes string, style domain.SummaryStyle) (string, error)
}

// HistoryStore persists a bounded, newest-first list of recordings.
type HistoryStore interface {
	Append(entry domain.HistoryEntry) error
	List() ([]domain.HistoryEntry, error)
	Clear() error
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	TranscriptUpdated(text string)
	CandidateEventsUpdated(candidates []domain.CandidateEvent)
	FinalTranscript(transcript string, summary string)
	SessionError(code domain.ErrorCode, detail string)
}
