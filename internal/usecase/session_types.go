package usecase

import (
	"fmt"
	"sync"
	"time"

	"memoai/internal/domain"
	"memoai/internal/ports"
)

type activeSession struct {
	id     string
	cancel func()
	audio  ports.AudioSession
	stream ports.StreamingSession

	stateMu     sync.Mutex
	state       domain.SessionState
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	reconciler *transcriptReconciler
	eventsDone chan struct{}
	audioDone  chan struct{}
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if state == domain.SessionStatePaused && s.state != domain.SessionStatePaused {
		s.pausedAt = time.Now()
	}
	if s.state == domain.SessionStatePaused && state != domain.SessionStatePaused && !s.pausedAt.IsZero() {
		s.pausedTotal += time.Since(s.pausedAt)
		s.pausedAt = time.Time{}
	}
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// elapsed reports recording time excluding paused stretches, formatted as
// H:MM:SS for history records.
func (s *activeSession) elapsed() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	total := time.Since(s.startedAt) - s.pausedTotal
	if !s.pausedAt.IsZero() {
		total -= time.Since(s.pausedAt)
	}
	if total < 0 {
		total = 0
	}

	seconds := int(total.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
