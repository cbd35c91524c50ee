package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
)

// CapturingRecorder stores every event it receives. Err, when set, is
// returned from Record after the event is captured.
type CapturingRecorder struct {
	mu     sync.Mutex
	events []activity.Event

	Err error
}

var _ activity.Recorder = (*CapturingRecorder)(nil)

func (r *CapturingRecorder) Record(_ context.Context, ev activity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

func (r *CapturingRecorder) Events() []activity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]activity.Event(nil), r.events...)
}

func (r *CapturingRecorder) Last() (activity.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return activity.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

func (r *CapturingRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
