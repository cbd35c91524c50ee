package activitysink

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/observability"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

// Relay drains the activity bus into a downstream recorder, typically the
// lineage projection. Failures are logged and counted; the bus is not
// re-read.
type Relay struct {
	bus     *RedisBus
	sink    activity.Recorder
	metrics *observability.Metrics
	log     *logger.Logger
	timeout time.Duration
}

func NewRelay(bus *RedisBus, sink activity.Recorder, metrics *observability.Metrics, baseLog *logger.Logger) *Relay {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Relay{
		bus:     bus,
		sink:    sink,
		metrics: metrics,
		log:     baseLog.With("service", "ActivityRelay"),
		timeout: 10 * time.Second,
	}
}

// Start subscribes and returns; events are applied until ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	if r.bus == nil || r.sink == nil {
		return fmt.Errorf("relay requires a bus and a sink")
	}
	if err := r.bus.StartForwarder(ctx, r.apply); err != nil {
		return err
	}
	r.log.Info("Activity relay started", "channel", r.bus.Channel())
	return nil
}

func (r *Relay) apply(ctx context.Context, ev activity.Event) {
	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	status := "success"
	if err := r.sink.Record(actx, ev); err != nil {
		status = "failure"
		r.log.Warn("Relay apply failed",
			"kind", ev.Kind,
			"subject_id", ev.SubjectID,
			"family_root_id", ev.FamilyRootID,
			"error", err,
		)
	}
	r.metrics.ObserveRelayEvent(string(ev.Kind), status, time.Since(start))
}
