package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.LogMode = "test"
	cfg.DB.SQLitePath = filepath.Join(t.TempDir(), "promptchain.db")
	return cfg
}

func TestNewWiresEngineEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	a.Start(ctx)

	if a.Bus == nil || a.Graph != nil || a.Metrics != nil {
		t.Fatalf("optional backends wired incorrectly: bus=%v graph=%v metrics=%v", a.Bus, a.Graph, a.Metrics)
	}

	events := make(chan activity.Event, 4)
	if err := a.Bus.StartForwarder(ctx, func(_ context.Context, ev activity.Event) { events <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	p, err := a.Projects.Create(ctx, "demo", "Demo", "", uuid.New())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	res, err := a.Prompts.Create(ctx, domainagg.CreatePromptInput{
		ProjectID: p.ID, Key: "greeting", Name: "Greeting", UserText: "hi",
	})
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}

	for _, want := range []struct {
		subject uuid.UUID
		kind    activity.Kind
	}{
		{p.ID, activity.KindProjectCreated},
		{res.Version.ID, activity.KindVersionCreated},
	} {
		select {
		case ev := <-events:
			if ev.SubjectID != want.subject || ev.Kind != want.kind {
				t.Fatalf("unexpected bus event: want %s got %+v", want.kind, ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event on the bus", want.kind)
		}
	}

	h, err := a.Prompts.History(ctx, res.Version.ID, 10)
	if err != nil || len(h.Activity) != 1 {
		t.Fatalf("audit row missing: h=%+v err=%v", h, err)
	}

	if _, err := a.NewRelay(ctx); err == nil {
		t.Fatalf("relay without neo4j should fail")
	}
}

func TestNewFailsOnBadDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB.Driver = "oracle"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error")
	}
}
