package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xpanvictor/aria/pkg/io/device/portaudio"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices and their indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := portaudio.Devices()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}
