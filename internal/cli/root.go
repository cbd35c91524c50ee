// Package cli implements the promptchain CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/promptchain-backend/internal/app"
	"github.com/yungbote/promptchain-backend/internal/pkg/ctxutil"
)

var (
	configFile string
	formatFlag string
	actorFlag  string
)

// osExit is swapped in tests.
var osExit = os.Exit

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "promptchain",
	Short: "Versioned prompt families",
	Long:  "Create, version, roll back and audit prompt templates grouped into projects.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (default: $CONFIG_FILE)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor UUID recorded on writes (default: $PROMPTCHAIN_ACTOR)")
}

// openApp loads configuration and wires the engine. The returned context
// carries the actor for audit attribution.
func openApp(cmd *cobra.Command) (*app.App, context.Context, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	actor, err := parseActor()
	if err != nil {
		return nil, nil, err
	}
	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{
		RequestID: uuid.NewString(),
		Actor:     actor,
	})
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, ctx, nil
}

func parseActor() (uuid.UUID, error) {
	raw := strings.TrimSpace(actorFlag)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("PROMPTCHAIN_ACTOR"))
	}
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid actor %q: %w", raw, err)
	}
	return id, nil
}

func parseID(raw string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		exitErr("parse id", err)
	}
	return id
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	osExit(1)
}
