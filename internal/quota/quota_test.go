package quota

import (
	"sync"
	"testing"
	"time"
)

func TestCeilingReached(t *testing.T) {
	tr := NewTracker(map[string]int{"naver": 3})

	for i := 0; i < 3; i++ {
		if tr.IsOverLimit("naver") {
			t.Fatalf("over limit after %d increments, ceiling is 3", i)
		}
		tr.Increment("naver")
	}
	if !tr.IsOverLimit("naver") {
		t.Error("expected over limit once ceiling increments recorded")
	}
}

func TestLazyDailyReset(t *testing.T) {
	clock := time.Date(2025, 3, 1, 23, 50, 0, 0, time.UTC)
	tr := NewTracker(map[string]int{"naver": 2}, WithClock(func() time.Time { return clock }))

	tr.Increment("naver")
	tr.Increment("naver")
	if !tr.IsOverLimit("naver") {
		t.Fatal("expected over limit at ceiling")
	}

	// Date change resets the window without any scheduled job.
	clock = clock.Add(time.Hour)
	if tr.IsOverLimit("naver") {
		t.Error("expected limit cleared after date rollover")
	}
	if got := tr.Count("naver"); got != 0 {
		t.Errorf("Count = %d after rollover, want 0", got)
	}
}

func TestUnmeteredProvider(t *testing.T) {
	tr := NewTracker(map[string]int{"naver": 1})

	for i := 0; i < 10; i++ {
		tr.Increment("arxiv")
	}
	if tr.IsOverLimit("arxiv") {
		t.Error("provider without a ceiling must never be over limit")
	}
	if got := tr.Count("arxiv"); got != 10 {
		t.Errorf("Count = %d, want 10 (attempts are still recorded)", got)
	}
}

func TestExplicitReset(t *testing.T) {
	tr := NewTracker(map[string]int{"naver": 1})
	tr.Increment("naver")
	if !tr.IsOverLimit("naver") {
		t.Fatal("expected over limit")
	}
	tr.Reset("naver")
	if tr.IsOverLimit("naver") {
		t.Error("expected limit cleared after Reset")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	tr := NewTracker(map[string]int{"naver": 10000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tr.Increment("naver")
			}
		}()
	}
	wg.Wait()

	if got := tr.Count("naver"); got != 1000 {
		t.Errorf("Count = %d, want 1000", got)
	}
}
