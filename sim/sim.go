// sim/sim.go

// Package sim is a host-side model of a byte-at-a-time UART peripheral. It
// implements uartx.Hardware and plays the role of the interrupt controller,
// so the driver can be exercised without a microcontroller.
//
// Model
//   - Receive register: one character at a time is loaded from a queue of
//     injected frames. While it is loaded the RX-ready interrupt is pending;
//     reading it clears the interrupt. An overrun frame latches the
//     receiver off until ResetReceiver.
//   - Transmit register: every WriteTx goes straight onto the wire, so the
//     register is always empty again by the next interrupt. The TX-empty
//     interrupt is therefore pending exactly while it is unmasked.
//   - Interrupts: Step delivers at most one pending interrupt, RX first.
//     Handlers run under an interrupt lock that foreground arming also
//     takes, so the foreground never observes a half-run handler.
package sim

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/jangala-dev/tinygo-isruart/uartx"
)

var _ uartx.Hardware = (*Hardware)(nil)

// ErrInvalidBaud is returned by Configure for a zero baud rate.
var ErrInvalidBaud = errors.New("sim: invalid baud rate")

// Handlers is the pair of interrupt entry points the simulation calls.
// *uartx.UART satisfies it.
type Handlers interface {
	HandleRxReady()
	HandleTxEmpty()
}

// Frame is one character as it arrives on the RX line.
type Frame struct {
	Data         byte
	FramingError bool
	Overrun      bool
}

// Option configures a Hardware.
type Option func(*Hardware)

// WithSink copies every transmitted byte to w.
func WithSink(w io.Writer) Option { return func(s *Hardware) { s.sink = w } }

// WithTracer calls fn for every register-level event.
func WithTracer(fn func(Event)) Option { return func(s *Hardware) { s.tracer = fn } }

// WithPacing makes Run deliver at most one interrupt per character time at
// the configured baud instead of running flat out.
func WithPacing(on bool) Option { return func(s *Hardware) { s.paced = on } }

// Hardware is a simulated UART peripheral.
type Hardware struct {
	irq sync.Mutex // held while a handler runs
	mu  sync.Mutex // register state below

	h Handlers

	baud       uint32
	configured bool

	rxLatched bool         // overrun: receiver stopped until reset
	rxPending *queue.Queue // Frame, not yet on the receive register
	rxReg     Frame
	rxFull    bool

	wire *queue.Queue // byte, written to the transmit register

	txEnabled atomic.Bool

	writes int
	resets int

	sink   io.Writer
	tracer func(Event)
	seq    atomic.Uint64
	paced  bool
}

// New returns an unconfigured simulated peripheral.
func New(opts ...Option) *Hardware {
	s := &Hardware{
		rxPending: queue.New(),
		wire:      queue.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Attach sets the handlers Step dispatches to.
func (s *Hardware) Attach(h Handlers) {
	s.irq.Lock()
	s.h = h
	s.irq.Unlock()
}

// ---------------- uartx.Hardware ----------------

// Configure implements uartx.Hardware.
func (s *Hardware) Configure(baud uint32) error {
	if baud == 0 {
		return ErrInvalidBaud
	}
	s.mu.Lock()
	s.baud = baud
	s.configured = true
	s.rxLatched = false
	s.rxFull = false
	s.mu.Unlock()
	s.txEnabled.Store(false)
	s.emit(Event{Kind: EventConfigure})
	return nil
}

// WriteTx implements uartx.Hardware.
func (s *Hardware) WriteTx(b byte) {
	s.mu.Lock()
	s.wire.Add(b)
	s.writes++
	s.mu.Unlock()
	if s.sink != nil {
		_, _ = s.sink.Write([]byte{b})
	}
	s.emit(Event{Kind: EventTxWrite, Data: b})
}

// ReadRx implements uartx.Hardware. Reading an empty register returns 0
// with no flags, as the real data register would return stale data.
func (s *Hardware) ReadRx() (byte, uartx.RxStatus) {
	s.mu.Lock()
	if !s.rxFull {
		s.mu.Unlock()
		return 0, 0
	}
	f := s.rxReg
	s.rxFull = false
	var st uartx.RxStatus
	if f.FramingError {
		st |= uartx.RxFramingError
	}
	if f.Overrun {
		st |= uartx.RxOverrun
		s.rxLatched = true
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventRxRead, Data: f.Data, Status: st})
	return f.Data, st
}

// ResetReceiver implements uartx.Hardware.
func (s *Hardware) ResetReceiver() {
	s.mu.Lock()
	s.rxLatched = false
	s.resets++
	s.mu.Unlock()
	s.emit(Event{Kind: EventRxReset})
}

// SetTxInterrupt implements uartx.Hardware. Unmasking waits for any running
// handler to finish; it must not be called from inside a handler.
func (s *Hardware) SetTxInterrupt(enabled bool) {
	if !enabled {
		if s.txEnabled.Swap(false) {
			s.emit(Event{Kind: EventTxMask})
		}
		return
	}
	s.irq.Lock()
	was := s.txEnabled.Swap(true)
	s.irq.Unlock()
	if !was {
		s.emit(Event{Kind: EventTxArm})
	}
}

// TxInterruptEnabled implements uartx.Hardware.
func (s *Hardware) TxInterruptEnabled() bool { return s.txEnabled.Load() }

// ---------------- Interrupt delivery ----------------

// Step delivers at most one pending interrupt and reports whether it did.
func (s *Hardware) Step() bool {
	s.irq.Lock()
	defer s.irq.Unlock()
	if s.h == nil {
		return false
	}
	if s.loadRx() {
		s.h.HandleRxReady()
		return true
	}
	if s.txEnabled.Load() {
		s.h.HandleTxEmpty()
		return true
	}
	return false
}

// loadRx moves the next injected frame onto the receive register if the
// register is free and reports whether an RX interrupt is pending.
func (s *Hardware) loadRx() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return false
	}
	if !s.rxFull && !s.rxLatched && s.rxPending.Length() > 0 {
		s.rxReg = s.rxPending.Remove().(Frame)
		s.rxFull = true
	}
	return s.rxFull
}

// Drain steps until no interrupt is pending or max interrupts have been
// delivered, and returns how many were delivered.
func (s *Hardware) Drain(max int) int {
	n := 0
	for n < max && s.Step() {
		n++
	}
	return n
}

// Run delivers interrupts until ctx is done, then returns ctx.Err().
func (s *Hardware) Run(ctx context.Context) error {
	if s.paced {
		return s.runPaced(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !s.Step() {
			runtime.Gosched()
		}
	}
}

func (s *Hardware) runPaced(ctx context.Context) error {
	t := time.NewTicker(s.CharTime())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Step()
		}
	}
}

// CharTime is the duration of one 8N1 character (10 bits) at the
// configured baud.
func (s *Hardware) CharTime() time.Duration {
	s.mu.Lock()
	baud := s.baud
	s.mu.Unlock()
	if baud == 0 {
		return time.Millisecond
	}
	return 10 * time.Second / time.Duration(baud)
}

// ---------------- Line side ----------------

// Inject queues frames for reception.
func (s *Hardware) Inject(frames ...Frame) {
	s.mu.Lock()
	for _, f := range frames {
		s.rxPending.Add(f)
	}
	s.mu.Unlock()
}

// InjectBytes queues clean frames for every byte of p.
func (s *Hardware) InjectBytes(p []byte) {
	s.mu.Lock()
	for _, b := range p {
		s.rxPending.Add(Frame{Data: b})
	}
	s.mu.Unlock()
}

// RxPending returns how many injected frames have not reached the driver.
func (s *Hardware) RxPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.rxPending.Length()
	if s.rxFull {
		n++
	}
	return n
}

// Wire returns a copy of every byte written to the transmit register that
// has not been taken yet.
func (s *Hardware) Wire() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.wire.Length())
	for i := range out {
		out[i] = s.wire.Get(i).(byte)
	}
	return out
}

// TakeWire returns and removes the transmitted bytes.
func (s *Hardware) TakeWire() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, 0, s.wire.Length())
	for s.wire.Length() > 0 {
		out = append(out, s.wire.Remove().(byte))
	}
	return out
}

// Writes returns the number of transmit register writes.
func (s *Hardware) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ReceiverResets returns the number of ResetReceiver calls.
func (s *Hardware) ReceiverResets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Baud returns the configured baud rate, or 0 before Configure.
func (s *Hardware) Baud() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

func (s *Hardware) emit(ev Event) {
	if s.tracer == nil {
		return
	}
	ev.Seq = s.seq.Add(1)
	ev.Time = time.Now()
	s.tracer(ev)
}
