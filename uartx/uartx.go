// uartx/uartx.go

// Package uartx provides a minimal interrupt-driven UART driver for
// single-core microcontrollers. Foreground calls never block: outgoing bytes
// are queued in a software TX ring that the TX-empty interrupt drains one
// character at a time, and received bytes are queued by the RX interrupt in
// a software RX ring until the foreground reads them.
//
// Both rings are single-producer/single-consumer. The foreground owns the TX
// producer and the RX consumer, the interrupt handlers own the other halves,
// so no locks and no interrupt masking are needed around ring operations.
//
// Data is dropped, never waited for: a full TX ring rejects the byte with
// ErrFull, and a full RX ring silently discards the incoming character.
package uartx

import (
	"errors"

	"github.com/jangala-dev/tinygo-isruart/ring"
)

var (
	// ErrFull is returned when the TX ring has no free slot. It wraps ring.ErrFull.
	ErrFull error = fullError{}
	// ErrInvalidInput is returned by SendLine when given a nil slice.
	ErrInvalidInput = errors.New("uartx: invalid input")
	// ErrBufferEmpty is returned by ReadByte when nothing has been received.
	ErrBufferEmpty = errors.New("uartx: RX buffer empty")
	// ErrNotInitialized is returned by send operations before Init.
	ErrNotInitialized = errors.New("uartx: not initialized")
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("uartx: already initialized")
	// ErrBufferSize is returned by Init when a ring would have fewer than 2 slots.
	ErrBufferSize = errors.New("uartx: buffer size must be >= 2")
)

// fullError keeps fmt out of the firmware image.
type fullError struct{}

func (fullError) Error() string { return "uartx: TX buffer full" }
func (fullError) Unwrap() error { return ring.ErrFull }

const (
	// DefaultBaudRate is used when Config.BaudRate is zero.
	DefaultBaudRate = 9600
	// DefaultBufferSize is the ring size (slots, one kept free) used when
	// Config.TxBufferSize or Config.RxBufferSize is zero.
	DefaultBufferSize = 24
)

// Config holds the few settings that are chosen at Init. The line format is
// always 8 data bits, no parity, 1 stop bit.
type Config struct {
	BaudRate     uint32
	TxBufferSize int // ring slots; usable capacity is one less
	RxBufferSize int
}

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.TxBufferSize == 0 {
		c.TxBufferSize = DefaultBufferSize
	}
	if c.RxBufferSize == 0 {
		c.RxBufferSize = DefaultBufferSize
	}
	return c
}

// UART is one driver instance bound to one peripheral.
//
// Ownership:
//   - foreground: txp (TX producer), rxc (RX consumer), arming the TX interrupt
//   - HandleRxReady: rxp (RX producer)
//   - HandleTxEmpty: txc (TX consumer), masking the TX interrupt
type UART struct {
	hw Hardware

	txp *ring.Producer
	txc *ring.Consumer
	rxp *ring.Producer
	rxc *ring.Consumer

	notify chan struct{} // coalesced RX readiness notifications

	baud  uint32
	stats stats
}

// New returns a driver bound to hw. Call Init before anything else.
func New(hw Hardware) *UART {
	return &UART{
		hw:     hw,
		notify: make(chan struct{}, 1),
	}
}

// Init configures the peripheral for 8N1 at cfg.BaudRate and allocates both
// rings empty. The TX interrupt is left masked. Init does not enable
// interrupts globally; the caller does that once Init has returned.
func (uart *UART) Init(cfg Config) error {
	if uart.txp != nil {
		return ErrAlreadyInitialized
	}
	cfg = cfg.withDefaults()
	if cfg.TxBufferSize < 2 || cfg.RxBufferSize < 2 {
		return ErrBufferSize
	}

	// Configure unmasks the RX interrupt, and a pointer store is not atomic
	// on every target, so the rings are in place before it runs.
	uart.rxp, uart.rxc = ring.New(cfg.RxBufferSize)
	uart.txp, uart.txc = ring.New(cfg.TxBufferSize)

	if err := uart.hw.Configure(cfg.BaudRate); err != nil {
		uart.rxp, uart.rxc = nil, nil
		uart.txp, uart.txc = nil, nil
		return err
	}
	uart.baud = cfg.BaudRate
	return nil
}

// BaudRate returns the baud rate applied by Init, or 0 before Init.
func (uart *UART) BaudRate() uint32 { return uart.baud }

// SendByte queues value for transmission and arms the TX-empty interrupt.
// If the TX ring is full the byte is dropped and ErrFull is returned.
func (uart *UART) SendByte(value byte) error {
	if uart.txp == nil {
		return ErrNotInitialized
	}
	if err := uart.txp.Push(value); err != nil {
		uart.dbgTxDrop()
		return ErrFull
	}
	// Arming is idempotent. Doing it after every push closes the window
	// where the handler drained the ring and masked just before this push.
	uart.hw.SetTxInterrupt(true)
	return nil
}

// WriteByte implements io.ByteWriter. It is SendByte.
func (uart *UART) WriteByte(c byte) error { return uart.SendByte(c) }

// SendLine queues every byte of p followed by CR LF. It returns
// ErrInvalidInput for a nil slice and queues nothing. Otherwise it is
// best-effort: a byte rejected because the TX ring is full is dropped and
// the remaining bytes and the terminator are still attempted.
func (uart *UART) SendLine(p []byte) error {
	if p == nil {
		return ErrInvalidInput
	}
	if uart.txp == nil {
		return ErrNotInitialized
	}
	for _, b := range p {
		_ = uart.SendByte(b)
	}
	_ = uart.SendByte('\r')
	_ = uart.SendByte('\n')
	return nil
}

// TryWrite queues bytes from p until the TX ring is full and returns how
// many were accepted. It never blocks and never returns an error.
func (uart *UART) TryWrite(p []byte) int {
	n := 0
	for n < len(p) {
		if uart.SendByte(p[n]) != nil {
			break
		}
		n++
	}
	return n
}

// Write implements io.Writer without blocking. It stops at the first byte
// the TX ring rejects and returns the count accepted with ErrFull.
func (uart *UART) Write(p []byte) (int, error) {
	if uart.txp == nil {
		return 0, ErrNotInitialized
	}
	n := uart.TryWrite(p)
	if n < len(p) {
		return n, ErrFull
	}
	return n, nil
}

// ReadByte implements io.ByteReader. It returns (0, ErrBufferEmpty) when
// nothing is buffered; 0 matches the empty value legacy callers expect.
func (uart *UART) ReadByte() (byte, error) {
	if uart.rxc == nil {
		return ring.Empty, ErrBufferEmpty
	}
	b, ok := uart.rxc.Pop()
	if !ok {
		return ring.Empty, ErrBufferEmpty
	}
	return b, nil
}

// TryRead copies up to len(p) buffered bytes into p and returns the count.
// A return value of 0 means "no data now".
func (uart *UART) TryRead(p []byte) int {
	n := 0
	for n < len(p) {
		b, err := uart.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// Read implements io.Reader without blocking. It returns 0, nil when the RX
// ring is empty and never returns io.EOF.
func (uart *UART) Read(p []byte) (int, error) {
	return uart.TryRead(p), nil
}

// RxLen returns the number of received bytes waiting to be read.
func (uart *UART) RxLen() int {
	if uart.rxc == nil {
		return 0
	}
	return uart.rxc.Len()
}

// Buffered is RxLen.
func (uart *UART) Buffered() int { return uart.RxLen() }

// TxLen returns the number of bytes queued and not yet written to hardware.
func (uart *UART) TxLen() int {
	if uart.txp == nil {
		return 0
	}
	return uart.txp.Len()
}

// TxFree returns the remaining space in the TX ring in bytes.
func (uart *UART) TxFree() int {
	if uart.txp == nil {
		return 0
	}
	return uart.txp.Free()
}

// Readable returns a coalesced notification for RX readiness. The RX handler
// sends on it after buffering a byte, without blocking. Callers must
// re-check RxLen after waking.
func (uart *UART) Readable() <-chan struct{} { return uart.notify }
