// Package extract mines transcript text for calendar-style date mentions.
//
// The scanner is deliberately narrow: it matches "Month Day[, Year][ at
// Time]" phrases and nothing else. Conversational references ("next
// Tuesday", "tomorrow") are out of scope.
package extract

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"memoai/internal/domain"
)

// MaxCandidates bounds how many suggestions a single scan may produce.
const MaxCandidates = 4

const (
	defaultHour     = 9
	defaultDuration = time.Hour
	contextRadius   = 60
)

var datePattern = regexp.MustCompile(
	`(?i)\b(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t|tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?(?:\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?)?`,
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Candidates scans the transcript and returns up to MaxCandidates suggested
// events. It is a pure function of its inputs: the same transcript and the
// same "now" always produce the same list, ids included.
func Candidates(text string, now time.Time) []domain.CandidateEvent {
	var out []domain.CandidateEvent

	for _, match := range datePattern.FindAllStringSubmatchIndex(text, -1) {
		candidate, ok := resolveMatch(text, match, now)
		if !ok {
			// An individual unparsable mention never aborts the scan.
			continue
		}
		out = append(out, candidate)
		if len(out) == MaxCandidates {
			break
		}
	}

	return out
}

func resolveMatch(text string, match []int, now time.Time) (domain.CandidateEvent, bool) {
	monthName := group(text, match, 1)
	month, ok := months[strings.ToLower(monthName)[:3]]
	if !ok {
		return domain.CandidateEvent{}, false
	}

	day, err := strconv.Atoi(group(text, match, 2))
	if err != nil || day < 1 || day > 31 {
		return domain.CandidateEvent{}, false
	}

	year := now.Year()
	explicitYear := false
	if raw := group(text, match, 3); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			return domain.CandidateEvent{}, false
		}
		explicitYear = true
	}

	hour, minute, ok := resolveTime(text, match)
	if !ok {
		return domain.CandidateEvent{}, false
	}

	start := time.Date(year, month, day, hour, minute, 0, 0, now.Location())
	if start.Month() != month || start.Day() != day {
		// time.Date normalizes overflow ("February 30"), which means the
		// spoken date was not a real calendar date.
		return domain.CandidateEvent{}, false
	}

	// Without an explicit year, a date that already passed refers to the
	// next occurrence.
	if !explicitYear && now.Sub(start) > time.Hour {
		start = start.AddDate(1, 0, 0)
	}

	title, context := describeMatch(text, match[0], match[1])
	if title == "" {
		title = fmt.Sprintf("Event on %s %d", month, day)
	}

	return domain.CandidateEvent{
		ID:      candidateID(match[0], start),
		Title:   title,
		Start:   start,
		End:     start.Add(defaultDuration),
		Context: context,
	}, true
}

func resolveTime(text string, match []int) (hour int, minute int, ok bool) {
	hour = defaultHour
	raw := group(text, match, 4)
	if raw == "" {
		return hour, 0, true
	}

	hour, err := strconv.Atoi(raw)
	if err != nil {
		return 0, 0, false
	}
	if rawMinute := group(text, match, 5); rawMinute != "" {
		minute, err = strconv.Atoi(rawMinute)
		if err != nil {
			return 0, 0, false
		}
	}

	switch strings.ToLower(group(text, match, 6)) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// describeMatch extracts a context window around the match and derives a
// short title from its first sentence.
func describeMatch(text string, start int, end int) (title string, context string) {
	runes := []rune(text)
	startRune := len([]rune(text[:start]))
	endRune := len([]rune(text[:end]))

	lo := startRune - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := endRune + contextRadius
	if hi > len(runes) {
		hi = len(runes)
	}
	context = strings.TrimSpace(string(runes[lo:hi]))

	for _, part := range sentenceSplit.Split(context, -1) {
		sentence := strings.TrimSpace(part)
		if sentence == "" {
			continue
		}
		return capitalize(sentence), context
	}
	return "", context
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// candidateID derives a stable id from the match position and the resolved
// start time so repeated scans of the same text agree.
func candidateID(offset int, start time.Time) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d|%s", offset, start.Format(time.RFC3339))
	return fmt.Sprintf("candidate-%08x", h.Sum32())
}

func group(text string, match []int, n int) string {
	lo, hi := match[2*n], match[2*n+1]
	if lo < 0 {
		return ""
	}
	return text[lo:hi]
}
