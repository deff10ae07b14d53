package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"memoai/internal/domain"
	"memoai/internal/ports"
)

const titleWordLimit = 8

// transcriptFinalizer turns a finished session into a summarized, persisted
// history entry. Summarization, persistence and clipboard are all
// best-effort: the user keeps the transcript even when every collaborator is
// down.
type transcriptFinalizer struct {
	summarizer ports.Summarizer
	history    ports.HistoryStore
	clipboard  ports.Clipboard
	events     ports.EventSink
}

func newTranscriptFinalizer(
	summarizer ports.Summarizer,
	history ports.HistoryStore,
	clipboard ports.Clipboard,
	events ports.EventSink,
) transcriptFinalizer {
	return transcriptFinalizer{summarizer: summarizer, history: history, clipboard: clipboard, events: events}
}

func (f transcriptFinalizer) Finalize(ctx context.Context, transcript string, notes string, duration string) (domain.StopResult, domain.SessionStateReason) {
	result := domain.StopResult{
		Transcript: transcript,
		Duration:   duration,
	}

	summary, err := f.summarizer.Summarize(ctx, transcript, notes, domain.SummaryStyleBullets)
	if err != nil {
		f.events.SessionError(domain.ErrorCodeSummarize, err.Error())
	} else {
		result.Summary = summary
	}

	entry := domain.HistoryEntry{
		ID:         uuid.NewString(),
		Title:      deriveTitle(transcript),
		CreatedAt:  time.Now(),
		Duration:   duration,
		Summary:    result.Summary,
		Transcript: transcript,
		Notes:      notes,
	}
	if err := f.history.Append(entry); err != nil {
		f.events.SessionError(domain.ErrorCodeHistory, err.Error())
	} else {
		result.HistoryID = entry.ID
		result.Saved = true
	}

	result.Copied = true
	if err := f.clipboard.SetText(ctx, transcript); err != nil {
		result.Copied = false
		f.events.SessionError(domain.ErrorCodeClipboard, "transcript ready but clipboard write failed")
	}

	return result, domain.SessionReasonRecordingSaved
}

// deriveTitle uses the opening words of the transcript as a display label.
func deriveTitle(transcript string) string {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return "Meeting recording"
	}
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
		return strings.Join(words, " ") + "…"
	}
	return strings.Join(words, " ")
}
