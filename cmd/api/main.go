package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// This is the main entry point for aria.
// serve exposes the control API and the listener
// listen runs a single capture session from the terminal
func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aria",
		Short:         "Voice listener: segments microphone audio into utterances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(serveCmd(), listenCmd(), devicesCmd())
	return cmd
}
