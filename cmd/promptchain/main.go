package main

import (
	"os"

	"github.com/yungbote/promptchain-backend/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
