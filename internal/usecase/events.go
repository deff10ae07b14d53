package usecase

import (
	"time"

	"memoai/internal/extract"
	"memoai/internal/ports"
)

// consumeRecognitionEvents folds provider events into the reconciler and
// pushes the resulting transcript plus freshly mined candidate events to the
// UI. Folding happens on this single goroutine, so at most one fold is in
// flight at a time.
func consumeRecognitionEvents(
	session ports.StreamingSession,
	reconciler *transcriptReconciler,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	lastSnapshot := ""
	for event := range session.Events() {
		reconciler.Fold(event)

		snapshot := reconciler.Snapshot()
		if snapshot == lastSnapshot {
			continue
		}
		lastSnapshot = snapshot

		events.TranscriptUpdated(snapshot)
		// Candidates are a pure function of the transcript, recomputed from
		// scratch on every change.
		events.CandidateEventsUpdated(extract.Candidates(snapshot, time.Now()))
	}
}
