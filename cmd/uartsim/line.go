package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var lineCmd = &cobra.Command{
	Use:   "line TEXT...",
	Short: "Send each argument as a CR LF terminated line and print the wire",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, a := range args {
			if err := s.uart.SendLine([]byte(a)); err != nil {
				return err
			}
			// Let the line go out before the next one so a short TX ring
			// only truncates lines that do not fit on their own.
			s.hw.Drain(4 * (len(a) + 2))
			wire := s.hw.TakeWire()
			fmt.Fprintf(out, "%s  (%d bytes)\n", strconv.Quote(string(wire)), len(wire))
			if dropped := len(a) + 2 - len(wire); dropped > 0 {
				fmt.Fprintf(out, "  %d bytes dropped: TX ring full\n", dropped)
			}
		}
		return s.close()
	},
}

func init() {
	rootCmd.AddCommand(lineCmd)
}
