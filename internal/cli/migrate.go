package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema",
		Run:   runMigrate,
	})
}

// runMigrate relies on app.New, which migrates on open.
func runMigrate(cmd *cobra.Command, args []string) {
	a, _, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", a.Store.Driver())
}
