// Command agentcrew deploys and supervises crews of AI coding agents.
package main

import (
	"fmt"
	"os"

	"github.com/mkykode/agentcrew/internal/cmd"
	"github.com/mkykode/agentcrew/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
