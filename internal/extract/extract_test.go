package extract

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

var clock = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestCandidatesParsesMonthDayTime(t *testing.T) {
	t.Parallel()

	got := Candidates("Let's meet Jan 5 at 3pm to discuss the budget.", clock)
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}

	c := got[0]
	want := time.Date(2026, time.January, 5, 15, 0, 0, 0, time.UTC)
	if !c.Start.Equal(want) {
		t.Fatalf("unexpected start: %s", c.Start)
	}
	if !c.End.Equal(want.Add(time.Hour)) {
		t.Fatalf("expected end one hour after start, got %s", c.End)
	}
	if c.Title != "Let's meet Jan 5 at 3pm to discuss the budget" {
		t.Fatalf("unexpected title: %q", c.Title)
	}
}

func TestCandidatesIsDeterministic(t *testing.T) {
	t.Parallel()

	text := "Let's meet Jan 5 at 3pm to discuss the budget."
	first := Candidates(text, clock)
	second := Candidates(text, clock)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated scans disagree: %+v vs %+v", first, second)
	}
}

func TestCandidatesExplicitYearIsKept(t *testing.T) {
	t.Parallel()

	got := Candidates("The deadline is February 10, 2024 at 5:30pm.", clock)
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}

	want := time.Date(2024, time.February, 10, 17, 30, 0, 0, time.UTC)
	if !got[0].Start.Equal(want) {
		t.Fatalf("unexpected start: %s", got[0].Start)
	}
}

func TestCandidatesYearRollsForwardWhenDateElapsed(t *testing.T) {
	t.Parallel()

	got := Candidates("Kickoff is March 1 at 9am.", clock)
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	if got[0].Start.Year() != 2026 {
		t.Fatalf("expected rollover to 2026, got %s", got[0].Start)
	}
}

func TestCandidatesUpcomingDateStaysInCurrentYear(t *testing.T) {
	t.Parallel()

	got := Candidates("Review on March 14 at 10am.", clock)
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	if got[0].Start.Year() != 2025 {
		t.Fatalf("expected current year, got %s", got[0].Start)
	}
}

func TestCandidatesDefaultsToNineAM(t *testing.T) {
	t.Parallel()

	got := Candidates("Offsite on June 2.", clock)
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	if got[0].Start.Hour() != 9 || got[0].Start.Minute() != 0 {
		t.Fatalf("expected 09:00 default, got %s", got[0].Start)
	}
}

func TestCandidatesSkipsImpossibleDates(t *testing.T) {
	t.Parallel()

	got := Candidates("We said February 30 but meant April 12.", clock)
	if len(got) != 1 {
		t.Fatalf("expected the invalid date to be skipped, got %d candidates", len(got))
	}
	if got[0].Start.Month() != time.April || got[0].Start.Day() != 12 {
		t.Fatalf("unexpected candidate: %s", got[0].Start)
	}
}

func TestCandidatesBounded(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for day := 1; day <= 10; day++ {
		fmt.Fprintf(&b, "Sync on July %d at 9am. ", day)
	}

	got := Candidates(b.String(), clock)
	if len(got) != MaxCandidates {
		t.Fatalf("expected %d candidates, got %d", MaxCandidates, len(got))
	}
}

func TestCandidatesMonthAbbreviations(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Month{
		"Jan 5":       time.January,
		"Sept 5":      time.September,
		"September 5": time.September,
		"Dec. 5":      time.December,
	}

	for mention, month := range cases {
		mention := mention
		month := month
		t.Run(mention, func(t *testing.T) {
			t.Parallel()
			got := Candidates("Meet on "+mention+" at 2pm.", clock)
			if len(got) != 1 {
				t.Fatalf("expected one candidate, got %d", len(got))
			}
			if got[0].Start.Month() != month {
				t.Fatalf("unexpected month: %s", got[0].Start)
			}
		})
	}
}

func TestCandidatesEmptyForPlainText(t *testing.T) {
	t.Parallel()

	if got := Candidates("No dates here, just chatter about budgets.", clock); len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
}

func TestCandidatesContextWindow(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 200) + " Planning call May 20 at 11am. " + strings.Repeat("y", 200)
	got := Candidates(text, clock)
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	if !strings.Contains(got[0].Context, "May 20 at 11am") {
		t.Fatalf("context missing the mention: %q", got[0].Context)
	}
	if len(got[0].Context) > len("May 20 at 11am")+2*contextRadius+10 {
		t.Fatalf("context window too large: %d chars", len(got[0].Context))
	}
}
