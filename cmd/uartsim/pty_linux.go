//go:build linux

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-isruart/internal/pty"
	"github.com/jangala-dev/tinygo-isruart/sim"
)

var ptyCmd = &cobra.Command{
	Use:   "pty",
	Short: "Expose the simulated UART on a pseudo-terminal and echo what it receives",
	Long: "Opens a pseudo-terminal, prints its path and runs the driver's echo loop\n" +
		"behind it at the configured baud. Connect with e.g. `picocom /dev/pts/N`.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pty.Open()
		if err != nil {
			return err
		}
		defer p.Close()

		s, err := newSession(sim.WithSink(p.Master), sim.WithPacing(true))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		log.Printf("serial device %s at %d baud 8N1", p.Name, rootOpts.baud)

		// Line side: whatever the terminal types arrives as RX frames.
		go func() {
			buf := make([]byte, 64)
			for {
				n, err := p.Master.Read(buf)
				if n > 0 {
					s.hw.InjectBytes(buf[:n])
				}
				if err != nil {
					stop()
					return
				}
			}
		}()

		runDone := make(chan error, 1)
		go func() { runDone <- s.hw.Run(ctx) }()

		_ = s.uart.SendLine([]byte("I'm alive!"))
		echo(ctx, s)

		if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return s.close()
	},
}

func init() {
	rootCmd.AddCommand(ptyCmd)
}

// echo is the foreground loop: send back every received byte until ctx ends.
func echo(ctx context.Context, s *session) {
	for {
		for s.uart.RxLen() > 0 {
			b, err := s.uart.ReadByte()
			if err != nil {
				break
			}
			if s.uart.SendByte(b) != nil {
				log.Printf("TX ring full, dropped %q", b)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-s.uart.Readable():
		}
	}
}
