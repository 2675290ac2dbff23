package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-isruart/sim"
)

var (
	stressOpts = struct {
		bytes        int
		framingEvery int
		overrunEvery int
		drainEvery   int
	}{}

	stressCmd = &cobra.Command{
		Use:   "stress",
		Short: "Flood the RX path with faulty traffic while the foreground echoes slowly",
		Long: "Each character time one frame arrives and at most one byte leaves. The\n" +
			"foreground only services the driver every --drain-every frames, echoing\n" +
			"what it reads. Small rings overflow and drop data.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stressOpts.drainEvery < 1 {
				return fmt.Errorf("--drain-every must be >= 1")
			}
			s, err := newSession()
			if err != nil {
				return err
			}
			r := runStress(s)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "frames injected   %d\n", r.injected)
			fmt.Fprintf(out, "  framing errors  %d\n", r.framing)
			fmt.Fprintf(out, "  overruns        %d\n", r.overruns)
			fmt.Fprintf(out, "delivered to app  %d\n", r.delivered)
			fmt.Fprintf(out, "lost to full RX   %d\n", r.injected-r.framing-r.delivered)
			fmt.Fprintf(out, "echo rejected     %d\n", r.echoRejected)
			fmt.Fprintf(out, "bytes on wire     %d\n", r.wire)
			fmt.Fprintf(out, "receiver resets   %d\n", r.resets)
			return s.close()
		},
	}
)

func init() {
	f := stressCmd.Flags()
	f.IntVarP(&stressOpts.bytes, "bytes", "n", 1000, "frames to inject")
	f.IntVar(&stressOpts.framingEvery, "framing-every", 17, "mark every Nth frame with a framing error (0 = never)")
	f.IntVar(&stressOpts.overrunEvery, "overrun-every", 101, "mark every Nth frame with an overrun (0 = never)")
	f.IntVar(&stressOpts.drainEvery, "drain-every", 8, "frames between foreground service passes")
	rootCmd.AddCommand(stressCmd)
}

type stressResult struct {
	injected, framing, overruns int
	delivered, echoRejected     int
	wire, resets                int
}

func runStress(s *session) stressResult {
	var r stressResult
	service := func() {
		for s.uart.RxLen() > 0 {
			b, err := s.uart.ReadByte()
			if err != nil {
				break
			}
			r.delivered++
			if s.uart.SendByte(b) != nil {
				r.echoRejected++
			}
		}
	}

	for i := 1; i <= stressOpts.bytes; i++ {
		f := sim.Frame{Data: byte(i)}
		if every(i, stressOpts.framingEvery) {
			f.FramingError = true
			r.framing++
		}
		if every(i, stressOpts.overrunEvery) {
			f.Overrun = true
			r.overruns++
		}
		s.hw.Inject(f)
		r.injected++

		// One character time: the RX interrupt, then one TX slot.
		s.hw.Step()
		s.hw.Step()

		if i%stressOpts.drainEvery == 0 {
			service()
		}
	}
	service()
	s.hw.Drain(4 * (s.uart.TxLen() + 1))

	r.wire = len(s.hw.Wire())
	r.resets = s.hw.ReceiverResets()
	return r
}

func every(i, n int) bool { return n > 0 && i%n == 0 }
