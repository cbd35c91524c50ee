package neo4jdb

import (
	"context"
	"testing"

	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

func TestNewWithoutURIDisablesGraph(t *testing.T) {
	c, err := New(context.Background(), Config{URI: "  "}, logger.Nop())
	if err != nil || c != nil {
		t.Fatalf("expected nil client and nil error, got %v %v", c, err)
	}
	if c.Enabled() {
		t.Fatalf("nil client must report disabled")
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("closing a nil client: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("ping on a nil client should fail")
	}
}

func TestNewRequiresLogger(t *testing.T) {
	if _, err := New(context.Background(), Config{URI: "neo4j://localhost:7687"}, nil); err == nil {
		t.Fatalf("expected error without logger")
	}
}
