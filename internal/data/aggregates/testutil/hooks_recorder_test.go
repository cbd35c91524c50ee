package testutil

import (
	"sync"
	"testing"
	"time"
)

func TestHooksRecorder_CapturesSignalsConcurrently(t *testing.T) {
	h := &HooksRecorder{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := "success"
			if i%2 == 1 {
				status = "conflict"
				h.IncConflict("Prompt.Family.Update")
			}
			h.ObserveOperation("Prompt.Family.Update", status, time.Duration(i)*time.Millisecond)
		}(i)
	}
	wg.Wait()
	h.IncRetry("Prompt.Family.Update")
	h.ObserveEmission("Prompt.Family.Update", "failure")

	cases := map[string]int{"success": 4, "conflict": 4, "retryable": 0}
	for status, want := range cases {
		if got := h.StatusCount("Prompt.Family.Update", status); got != want {
			t.Fatalf("status %s: got %d want %d", status, got, want)
		}
	}
	if len(h.Conflicts) != 4 || len(h.Retries) != 1 {
		t.Fatalf("conflicts=%v retries=%v", h.Conflicts, h.Retries)
	}
	if len(h.Emissions) != 1 || h.Emissions[0].Status != "failure" {
		t.Fatalf("unexpected emissions: %+v", h.Emissions)
	}
}
