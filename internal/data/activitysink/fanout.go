package activitysink

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
)

// Fanout delivers each event to every sink concurrently. One failing sink
// does not stop the others; their errors are joined.
type Fanout struct {
	sinks []activity.Recorder
}

var _ activity.Recorder = (*Fanout)(nil)

func NewFanout(sinks ...activity.Recorder) *Fanout {
	out := make([]activity.Recorder, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out}
}

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Record(ctx context.Context, ev activity.Event) error {
	if f == nil || len(f.sinks) == 0 {
		return nil
	}
	if len(f.sinks) == 1 {
		return f.sinks[0].Record(ctx, ev)
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, sink := range f.sinks {
		g.Go(func() error {
			if err := sink.Record(ctx, ev); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
