// Command uartsim runs the uartx driver against a simulated peripheral on the
// host: send lines and inspect the wire, stress the RX path with faults, or
// bridge the simulated UART to a pseudo-terminal.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-isruart/internal/trace"
	"github.com/jangala-dev/tinygo-isruart/sim"
	"github.com/jangala-dev/tinygo-isruart/uartx"
)

var (
	rootOpts = struct {
		baud        uint32
		txSize      int
		rxSize      int
		tracePath   string
		traceFormat string
	}{}

	rootCmd = &cobra.Command{
		Use:           "uartsim",
		Short:         "Exercise the interrupt-driven UART driver on a simulated peripheral",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	f := rootCmd.PersistentFlags()
	f.Uint32VarP(&rootOpts.baud, "baud", "b", uartx.DefaultBaudRate, "line speed (8N1)")
	f.IntVar(&rootOpts.txSize, "tx-size", uartx.DefaultBufferSize, "TX ring slots (one is kept free)")
	f.IntVar(&rootOpts.rxSize, "rx-size", uartx.DefaultBufferSize, "RX ring slots (one is kept free)")
	f.StringVarP(&rootOpts.tracePath, "trace", "t", "", "write a register-level event trace to this file")
	f.StringVar(&rootOpts.traceFormat, "trace-format", "cbor", "trace encoding: cbor or msgpack")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("uartsim: ")
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// session is one driver bound to one simulated peripheral.
type session struct {
	uart *uartx.UART
	hw   *sim.Hardware
	rec  *trace.Recorder
}

// newSession builds and initialises a driver from the root flags. Extra
// options are passed to the simulated peripheral.
func newSession(opts ...sim.Option) (*session, error) {
	s := &session{}
	if rootOpts.tracePath != "" {
		if _, err := trace.ParseFormat(rootOpts.traceFormat); err != nil {
			return nil, err
		}
		s.rec = &trace.Recorder{}
		opts = append(opts, sim.WithTracer(s.rec.Record))
	}
	s.hw = sim.New(opts...)
	s.uart = uartx.New(s.hw)
	s.hw.Attach(s.uart)
	err := s.uart.Init(uartx.Config{
		BaudRate:     rootOpts.baud,
		TxBufferSize: rootOpts.txSize,
		RxBufferSize: rootOpts.rxSize,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// close writes the trace file if one was requested.
func (s *session) close() error {
	if s.rec == nil {
		return nil
	}
	format, _ := trace.ParseFormat(rootOpts.traceFormat)
	f, err := os.Create(rootOpts.tracePath)
	if err != nil {
		return fmt.Errorf("create trace: %w", err)
	}
	if err := s.rec.Encode(f, format); err != nil {
		f.Close()
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("wrote %d events to %s (%s)", s.rec.Len(), rootOpts.tracePath, format)
	return nil
}
