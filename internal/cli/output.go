package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/promptchain-backend/internal/domain"
)

func isText() bool {
	return strings.EqualFold(strings.TrimSpace(formatFlag), "text")
}

func printJSON(w io.Writer, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode output", err)
		return
	}
	fmt.Fprintln(w, string(b))
}

// printVersions writes one line per version in text mode.
func printVersions(cmd *cobra.Command, versions []*domain.PromptVersion) {
	out := cmd.OutOrStdout()
	if !isText() {
		printJSON(out, versions)
		return
	}
	for _, v := range versions {
		fmt.Fprintln(out, versionLine(v))
	}
}

func printVersion(cmd *cobra.Command, v *domain.PromptVersion) {
	out := cmd.OutOrStdout()
	if !isText() {
		printJSON(out, v)
		return
	}
	fmt.Fprintln(out, versionLine(v))
}

func versionLine(v *domain.PromptVersion) string {
	if v == nil {
		return ""
	}
	marker := " "
	if v.IsActive {
		marker = "*"
	}
	return fmt.Sprintf("%s %s  %-30s v%-3d %s", marker, v.ID, v.Key, v.Version, v.Name)
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
}
