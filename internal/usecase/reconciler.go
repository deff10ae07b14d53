package usecase

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"memoai/internal/domain"
)

// transcriptReconciler folds partial and final recognition events into a
// single transcript that only grows and never visibly jumps backward.
//
// Providers differ in how they emit partials: some send cumulative text for
// the whole utterance so far, others send only the newest fragment. The
// prefix checks below infer which behavior is in play from the text itself,
// so no provider-specific configuration is needed.
type transcriptReconciler struct {
	mu            sync.Mutex
	turns         []turn
	pending       string
	currentTurnID string
}

// turn is one completed utterance as segmented by the provider. The text may
// be rewritten in place when a correction for the same utterance arrives.
type turn struct {
	id   string
	text string
}

func newTranscriptReconciler() *transcriptReconciler {
	return &transcriptReconciler{}
}

// Fold merges one recognition event into the transcript. Events with an
// unknown kind are ignored.
func (r *transcriptReconciler) Fold(event domain.RecognitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Kind {
	case domain.RecognitionKindPartial:
		r.foldPartial(event)
	case domain.RecognitionKindFinal:
		r.foldFinal(event)
	}
}

func (r *transcriptReconciler) foldPartial(event domain.RecognitionEvent) {
	text := normalizeText(event.Text)
	if text == "" {
		r.pending = ""
		return
	}

	r.currentTurnID = r.resolveTurnID(event.TurnID)
	history := r.finalizedLocked()

	// The provider may re-send text the finalized history already starts
	// with; showing it again as pending would duplicate words on screen.
	if history != "" && len(history) >= len(text) && hasPrefixFold(history, text) {
		r.pending = ""
		return
	}

	if history != "" {
		// Cumulative partial: only the tail beyond the history is new. The
		// matched length is measured in text's own bytes, since case folding
		// can change a rune's encoded width.
		if n, ok := prefixLenFold(text, history); ok {
			r.pending = normalizeText(text[n:])
			return
		}
	}

	// Incremental partial: the whole payload is new content.
	r.pending = text
}

func (r *transcriptReconciler) foldFinal(event domain.RecognitionEvent) {
	text := normalizeText(event.Text)
	if text == "" {
		// Providers emit empty finals; they must never erase content.
		return
	}

	turnID := r.resolveTurnID(event.TurnID)

	target := -1
	for i := range r.turns {
		if r.turns[i].id == turnID {
			target = i
			break
		}
	}
	if target == -1 && len(r.turns) > 0 {
		// No id match, but a final that extends the last turn's text is a
		// correction of the same utterance, not a new one.
		last := r.turns[len(r.turns)-1]
		if hasPrefixFold(text, last.text) {
			target = len(r.turns) - 1
		}
	}

	switch {
	case target >= 0:
		r.turns[target].text = text
	case strings.Contains(strings.ToLower(r.finalizedLocked()), strings.ToLower(text)):
		// Redundant re-send of a final we already hold.
	default:
		r.turns = append(r.turns, turn{id: turnID, text: text})
	}

	r.currentTurnID = ""
	r.pending = ""
}

// Snapshot returns the externally visible transcript: finalized turns plus
// the unconfirmed pending tail, whitespace-normalized.
func (r *transcriptReconciler) Snapshot() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.finalizedLocked()
	if r.pending == "" {
		return history
	}
	if history == "" {
		return r.pending
	}
	return history + " " + r.pending
}

// Finalized returns only the stable portion of the transcript.
func (r *transcriptReconciler) Finalized() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalizedLocked()
}

// Clear resets all state; used when a new session starts.
func (r *transcriptReconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = nil
	r.pending = ""
	r.currentTurnID = ""
}

func (r *transcriptReconciler) finalizedLocked() string {
	if len(r.turns) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.turns))
	for _, t := range r.turns {
		parts = append(parts, t.text)
	}
	return normalizeText(strings.Join(parts, " "))
}

func (r *transcriptReconciler) resolveTurnID(id string) string {
	if id != "" {
		return id
	}
	if r.currentTurnID != "" {
		return r.currentTurnID
	}
	return fmt.Sprintf("turn-%d", len(r.turns))
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func hasPrefixFold(s string, prefix string) bool {
	_, ok := prefixLenFold(s, prefix)
	return ok
}

// prefixLenFold reports whether s starts with prefix under case folding and
// returns the byte length of that prefix as encoded in s.
func prefixLenFold(s string, prefix string) (int, bool) {
	n := 0
	for _, pr := range prefix {
		sr, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || unicode.ToLower(sr) != unicode.ToLower(pr) {
			return 0, false
		}
		n += size
	}
	return n, true
}
