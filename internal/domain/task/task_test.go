package task

import (
	"math"
	"testing"
)

func TestStatusNext(t *testing.T) {
	cases := []struct {
		from, want Status
	}{
		{StatusTodo, StatusInProgress},
		{StatusInProgress, StatusDone},
		{StatusDone, StatusTodo},
		{Status("garbage"), StatusTodo},
	}
	for _, tc := range cases {
		if got := tc.from.Next(); got != tc.want {
			t.Errorf("Next(%q) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

func TestParseStatusFallsBackToTodo(t *testing.T) {
	if got := ParseStatus("in-progress"); got != StatusInProgress {
		t.Errorf("ParseStatus(in-progress) = %q", got)
	}
	if got := ParseStatus("blocked"); got != StatusTodo {
		t.Errorf("ParseStatus(blocked) = %q, want todo", got)
	}
	if got := ParseStatus(""); got != StatusTodo {
		t.Errorf("ParseStatus(\"\") = %q, want todo", got)
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	if !(PriorityHigh.Rank() > PriorityMedium.Rank() &&
		PriorityMedium.Rank() > PriorityLow.Rank() &&
		PriorityLow.Rank() > Priority("").Rank()) {
		t.Errorf("rank order broken: high=%d medium=%d low=%d unknown=%d",
			PriorityHigh.Rank(), PriorityMedium.Rank(), PriorityLow.Rank(), Priority("").Rank())
	}
}

func TestParsePriorityFallsBackToLow(t *testing.T) {
	if got := ParsePriority("high"); got != PriorityHigh {
		t.Errorf("ParsePriority(high) = %q", got)
	}
	if got := ParsePriority("urgent"); got != PriorityLow {
		t.Errorf("ParsePriority(urgent) = %q, want low", got)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"  Work ", "work", "URGENT", "", "  ", "urgent", "Home"})
	want := []string{"work", "urgent", "home"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeTags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeTags = %v, want %v", got, want)
		}
	}
}

func TestHasTag(t *testing.T) {
	tk := Task{Tags: []string{"work", "urgent"}}
	if !tk.HasTag("work") {
		t.Error("expected HasTag(work)")
	}
	if tk.HasTag("home") {
		t.Error("did not expect HasTag(home)")
	}
}

func TestComputeStats(t *testing.T) {
	tasks := []Task{
		{Status: StatusTodo},
		{Status: StatusInProgress},
		{Status: StatusDone},
		{Status: StatusDone},
	}
	s := ComputeStats(tasks)
	if s.Total != 4 || s.Todo != 1 || s.InProgress != 1 || s.Done != 2 {
		t.Fatalf("stats = %+v", s)
	}
	if math.Abs(s.ProgressPercentage-50) > 1e-9 {
		t.Errorf("progress = %v, want 50", s.ProgressPercentage)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(nil)
	if s.Total != 0 || s.ProgressPercentage != 0 {
		t.Errorf("empty stats = %+v", s)
	}
}
