package domain

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable marks microphone acquisition failures the user must
// resolve before retrying; the controller never retries on its own.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateConnecting SessionState = "connecting"
	SessionStateRecording  SessionState = "recording"
	SessionStatePaused     SessionState = "paused"
	SessionStateStopping   SessionState = "stopping"
	SessionStateFailed     SessionState = "failed"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonConnecting         SessionStateReason = "connecting"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted SessionStateReason = "recording_restarted"
	SessionReasonPaused             SessionStateReason = "paused"
	SessionReasonResumed            SessionStateReason = "resumed"
	SessionReasonFinalizing         SessionStateReason = "finalizing"
	SessionReasonRecordingSaved     SessionStateReason = "recording_saved"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonNoTranscript       SessionStateReason = "no_transcript"
	SessionReasonDeviceUnavailable  SessionStateReason = "device_unavailable"
	SessionReasonTransportFailed    SessionStateReason = "transport_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup           ErrorCode = "startup"
	ErrorCodeDeviceUnavailable ErrorCode = "device_unavailable"
	ErrorCodeTransport         ErrorCode = "transport"
	ErrorCodeAudioStop         ErrorCode = "audio_stop"
	ErrorCodeAudioStream       ErrorCode = "audio_stream"
	ErrorCodeSummarize         ErrorCode = "summarize"
	ErrorCodeHistory           ErrorCode = "history"
	ErrorCodeClipboard         ErrorCode = "clipboard"
)

// RecognitionKind identifies whether a recognition event is partial or final.
type RecognitionKind string

const (
	RecognitionKindPartial RecognitionKind = "partial"
	RecognitionKindFinal   RecognitionKind = "final"
)

// RecognitionEvent is one recognition result received from the provider.
// TurnID is empty when the provider does not correlate utterances.
type RecognitionEvent struct {
	Kind   RecognitionKind `json:"kind"`
	Text   string          `json:"text"`
	TurnID string          `json:"turnId,omitempty"`
}

// SummaryStyle selects the summarization output shape.
type SummaryStyle string

const (
	SummaryStyleBullets   SummaryStyle = "bullets"
	SummaryStyleHeadline  SummaryStyle = "headline"
	SummaryStyleParagraph SummaryStyle = "paragraph"
)

// CandidateEvent is a calendar-event suggestion mined from transcript text.
// IDs are deterministic so repeated scans of the same text agree.
type CandidateEvent struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Context string    `json:"context"`
}

// HistoryEntry is one persisted recording.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"createdAt"`
	Duration   string    `json:"duration"`
	Summary    string    `json:"summary"`
	Transcript string    `json:"transcript"`
	Notes      string    `json:"notes"`
	FilePath   string    `json:"filePath,omitempty"`
}

// StopResult is returned once recording is stopped and the session finalized.
type StopResult struct {
	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`
	Duration   string `json:"duration"`
	HistoryID  string `json:"historyId"`
	Saved      bool   `json:"saved"`
	Copied     bool   `json:"copied"`
}

// Status summarizes the current runtime status.
type Status struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	Message string       `json:"message,omitempty"`
}
