package uartx_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/jangala-dev/tinygo-isruart/ring"
	"github.com/jangala-dev/tinygo-isruart/sim"
	"github.com/jangala-dev/tinygo-isruart/uartx"
)

// newTestUART returns an initialised driver wired to a simulated peripheral.
// Interrupts are only delivered when the test steps the simulation.
func newTestUART(t *testing.T, cfg uartx.Config) (*uartx.UART, *sim.Hardware) {
	t.Helper()
	hw := sim.New()
	u := uartx.New(hw)
	hw.Attach(u)
	if err := u.Init(cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return u, hw
}

func TestInit_DefaultsAndLifecycle(t *testing.T) {
	hw := sim.New()
	u := uartx.New(hw)

	if err := u.SendByte('a'); !errors.Is(err, uartx.ErrNotInitialized) {
		t.Fatalf("SendByte before Init: err=%v; want ErrNotInitialized", err)
	}
	if b, err := u.ReadByte(); b != 0 || !errors.Is(err, uartx.ErrBufferEmpty) {
		t.Fatalf("ReadByte before Init = %d,%v; want 0,ErrBufferEmpty", b, err)
	}

	if err := u.Init(uartx.Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if hw.Baud() != uartx.DefaultBaudRate || u.BaudRate() != uartx.DefaultBaudRate {
		t.Fatalf("baud hw=%d driver=%d; want %d", hw.Baud(), u.BaudRate(), uartx.DefaultBaudRate)
	}
	if u.TxFree() != uartx.DefaultBufferSize-1 {
		t.Fatalf("TxFree=%d; want %d", u.TxFree(), uartx.DefaultBufferSize-1)
	}
	if u.RxLen() != 0 || u.TxLen() != 0 {
		t.Fatalf("after Init RxLen=%d TxLen=%d; want 0,0", u.RxLen(), u.TxLen())
	}
	if u.TxState() != uartx.TxIdle {
		t.Fatalf("TxState=%v; want idle", u.TxState())
	}

	if err := u.Init(uartx.Config{}); !errors.Is(err, uartx.ErrAlreadyInitialized) {
		t.Fatalf("second Init: err=%v; want ErrAlreadyInitialized", err)
	}
}

func TestInit_RejectsTinyBuffer(t *testing.T) {
	u := uartx.New(sim.New())
	if err := u.Init(uartx.Config{TxBufferSize: 1}); !errors.Is(err, uartx.ErrBufferSize) {
		t.Fatalf("Init with TxBufferSize=1: err=%v; want ErrBufferSize", err)
	}
}

// brokenHW fails Configure and records nothing else.
type brokenHW struct{ *sim.Hardware }

var errNoClock = errors.New("no clock")

func (brokenHW) Configure(uint32) error { return errNoClock }

func TestInit_PropagatesConfigureError(t *testing.T) {
	u := uartx.New(brokenHW{sim.New()})
	err := u.Init(uartx.Config{})
	if !errors.Is(err, errNoClock) {
		t.Fatalf("Init: err=%v; want errNoClock", err)
	}
	if err := u.SendByte('a'); !errors.Is(err, uartx.ErrNotInitialized) {
		t.Fatalf("SendByte after failed Init: err=%v; want ErrNotInitialized", err)
	}
	if u.TxFree() != 0 || u.BaudRate() != 0 {
		t.Fatalf("after failed Init TxFree=%d BaudRate=%d; want 0,0", u.TxFree(), u.BaudRate())
	}
}

// rxOnConfigure delivers a character as soon as the receiver is enabled,
// before Configure has returned to the driver.
type rxOnConfigure struct{ *sim.Hardware }

func (h rxOnConfigure) Configure(baud uint32) error {
	if err := h.Hardware.Configure(baud); err != nil {
		return err
	}
	h.InjectBytes([]byte("!"))
	h.Step()
	return nil
}

func TestInit_RingsReadyWhenReceiverEnabled(t *testing.T) {
	hw := sim.New()
	u := uartx.New(rxOnConfigure{hw})
	hw.Attach(u)
	if err := u.Init(uartx.Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if u.RxLen() != 1 {
		t.Fatalf("RxLen=%d; want 1 (character received during Configure)", u.RxLen())
	}
	if b, err := u.ReadByte(); err != nil || b != '!' {
		t.Fatalf("ReadByte=(%q, %v); want ('!', nil)", b, err)
	}
}

func TestSendLine_EnqueuesBytesThenCRLF(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	if err := u.SendLine([]byte("AB")); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	if u.TxLen() != 4 {
		t.Fatalf("TxLen=%d; want 4", u.TxLen())
	}
	if u.TxState() != uartx.TxActive {
		t.Fatalf("TxState=%v; want active", u.TxState())
	}

	hw.Drain(100)

	if got, want := string(hw.Wire()), "AB\r\n"; got != want {
		t.Fatalf("wire=%q; want %q", got, want)
	}
	if u.TxState() != uartx.TxIdle {
		t.Fatalf("TxState after drain=%v; want idle", u.TxState())
	}
}

func TestSendLine_NilIsInvalidInput(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	if err := u.SendLine(nil); !errors.Is(err, uartx.ErrInvalidInput) {
		t.Fatalf("SendLine(nil): err=%v; want ErrInvalidInput", err)
	}
	if u.TxLen() != 0 || u.TxState() != uartx.TxIdle {
		t.Fatalf("after SendLine(nil) TxLen=%d TxState=%v; want 0,idle", u.TxLen(), u.TxState())
	}
	hw.Drain(10)
	if hw.Writes() != 0 {
		t.Fatalf("register writes=%d; want 0", hw.Writes())
	}
}

func TestSendLine_EmptyLineIsJustTerminator(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})
	if err := u.SendLine([]byte{}); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	hw.Drain(10)
	if got := string(hw.Wire()); got != "\r\n" {
		t.Fatalf("wire=%q; want \"\\r\\n\"", got)
	}
}

func TestSendLine_BestEffortWhenFull(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{TxBufferSize: 4})

	if err := u.SendLine([]byte("ABCDE")); err != nil {
		t.Fatalf("SendLine on overflow: err=%v; want nil", err)
	}
	if u.TxLen() != 3 {
		t.Fatalf("TxLen=%d; want 3", u.TxLen())
	}
	hw.Drain(100)
	if got := string(hw.Wire()); got != "ABC" {
		t.Fatalf("wire=%q; want \"ABC\"", got)
	}
}

func TestSendLine_KeepsGoingAfterSpaceFrees(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{TxBufferSize: 3})

	// Fill the ring, then let one interrupt free a slot between lines.
	_ = u.SendByte('x')
	_ = u.SendByte('y')
	if err := u.SendByte('z'); !errors.Is(err, uartx.ErrFull) {
		t.Fatalf("third SendByte: err=%v; want ErrFull", err)
	}
	hw.Step()
	if err := u.SendLine([]byte("Q")); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	hw.Drain(100)
	if got := string(hw.Wire()); got != "xyQ" {
		t.Fatalf("wire=%q; want \"xyQ\"", got)
	}
}

func TestSendByte_FullDropsAndReports(t *testing.T) {
	u, _ := newTestUART(t, uartx.Config{TxBufferSize: 3})

	for _, b := range []byte("ab") {
		if err := u.SendByte(b); err != nil {
			t.Fatalf("SendByte(%q): %v", b, err)
		}
	}
	err := u.SendByte('c')
	if !errors.Is(err, uartx.ErrFull) || !errors.Is(err, ring.ErrFull) {
		t.Fatalf("SendByte on full: err=%v; want ErrFull wrapping ring.ErrFull", err)
	}
	if u.TxLen() != 2 {
		t.Fatalf("TxLen=%d; want 2", u.TxLen())
	}
}

func TestHandleTxEmpty_EmptyBufferGoesIdle(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	hw.SetTxInterrupt(true)
	u.HandleTxEmpty()

	if u.TxState() != uartx.TxIdle {
		t.Fatalf("TxState=%v; want idle", u.TxState())
	}
	if hw.Writes() != 0 {
		t.Fatalf("register writes=%d; want 0", hw.Writes())
	}
}

func TestHandleTxEmpty_StaysArmedWhileDataRemains(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	_ = u.SendByte('a')
	_ = u.SendByte('b')

	u.HandleTxEmpty()
	if hw.Writes() != 1 || u.TxState() != uartx.TxActive {
		t.Fatalf("after first IRQ writes=%d state=%v; want 1,active", hw.Writes(), u.TxState())
	}
	u.HandleTxEmpty()
	if hw.Writes() != 2 || u.TxState() != uartx.TxIdle {
		t.Fatalf("after second IRQ writes=%d state=%v; want 2,idle", hw.Writes(), u.TxState())
	}
	if got := string(hw.Wire()); got != "ab" {
		t.Fatalf("wire=%q; want \"ab\"", got)
	}
}

func TestRx_FramingErrorIsDiscarded(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	hw.Inject(sim.Frame{Data: 'x', FramingError: true})
	hw.Drain(10)

	if u.RxLen() != 0 {
		t.Fatalf("RxLen=%d; want 0", u.RxLen())
	}
	if hw.RxPending() != 0 {
		t.Fatalf("receive register not read: pending=%d", hw.RxPending())
	}
}

func TestRx_FullRingKeepsContents(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{RxBufferSize: 5})

	hw.InjectBytes([]byte("abcd"))
	hw.Drain(10)
	if u.RxLen() != 4 {
		t.Fatalf("RxLen=%d; want 4", u.RxLen())
	}

	hw.InjectBytes([]byte("e"))
	hw.Drain(10)
	if u.RxLen() != 4 {
		t.Fatalf("RxLen after overflow=%d; want 4", u.RxLen())
	}
	if hw.RxPending() != 0 {
		t.Fatalf("overflow byte not consumed from register: pending=%d", hw.RxPending())
	}

	buf := make([]byte, 8)
	n, _ := u.Read(buf)
	if got := string(buf[:n]); got != "abcd" {
		t.Fatalf("contents=%q; want \"abcd\"", got)
	}
}

func TestRx_OverrunCyclesReceiver(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	hw.Inject(sim.Frame{Data: 'a', Overrun: true}, sim.Frame{Data: 'b'})
	hw.Drain(10)

	if hw.ReceiverResets() != 1 {
		t.Fatalf("receiver resets=%d; want 1", hw.ReceiverResets())
	}
	buf := make([]byte, 4)
	n := u.TryRead(buf)
	if got := string(buf[:n]); got != "ab" {
		t.Fatalf("received %q; want \"ab\"", got)
	}
}

func TestRx_FramingAndOverrunTogether(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	hw.Inject(sim.Frame{Data: 'x', FramingError: true, Overrun: true}, sim.Frame{Data: 'y'})
	hw.Drain(10)

	if hw.ReceiverResets() != 1 {
		t.Fatalf("receiver resets=%d; want 1", hw.ReceiverResets())
	}
	if b, err := u.ReadByte(); err != nil || b != 'y' {
		t.Fatalf("ReadByte=%q,%v; want 'y',nil", b, err)
	}
	if u.RxLen() != 0 {
		t.Fatalf("RxLen=%d; want 0", u.RxLen())
	}
}

func TestReadByte_EmptyReturnsSentinel(t *testing.T) {
	u, _ := newTestUART(t, uartx.Config{})
	b, err := u.ReadByte()
	if b != ring.Empty || !errors.Is(err, uartx.ErrBufferEmpty) {
		t.Fatalf("ReadByte on empty = %d,%v; want %d,ErrBufferEmpty", b, err, ring.Empty)
	}
}

func TestRead_NonBlockingSemantics(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})
	buf := make([]byte, 8)

	if n, err := u.Read(buf); err != nil || n != 0 {
		t.Fatalf("Read on empty: n=%d err=%v; want 0,nil", n, err)
	}

	hw.InjectBytes([]byte("ABC"))
	hw.Drain(10)

	n, err := u.Read(buf)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 3 || string(buf[:n]) != "ABC" {
		t.Fatalf("got n=%d data=%q; want 3, \"ABC\"", n, string(buf[:n]))
	}
	if n, _ := u.Read(buf); n != 0 {
		t.Fatalf("expected empty after drain, got n=%d", n)
	}
}

func TestWrite_ShortWriteReportsFull(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{TxBufferSize: 4})

	n, err := u.Write([]byte("hello"))
	if n != 3 || !errors.Is(err, uartx.ErrFull) {
		t.Fatalf("Write = %d,%v; want 3,ErrFull", n, err)
	}
	hw.Drain(100)
	if n, err := u.Write([]byte("lo")); n != 2 || err != nil {
		t.Fatalf("Write after drain = %d,%v; want 2,nil", n, err)
	}
	hw.Drain(100)
	if got := string(hw.Wire()); got != "hello" {
		t.Fatalf("wire=%q; want \"hello\"", got)
	}
}

func TestReadable_NotifiesOnReceive(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	select {
	case <-u.Readable():
		t.Fatal("notification before any data")
	default:
	}

	hw.InjectBytes([]byte("zz"))
	hw.Drain(10)

	select {
	case <-u.Readable():
	default:
		t.Fatal("no notification after receive")
	}
	// Coalesced: two bytes, one pending wake-up.
	select {
	case <-u.Readable():
		t.Fatal("notification not coalesced")
	default:
	}
}

// The foreground sends and echoes while a second goroutine delivers
// interrupts as fast as it can. Every accepted byte must reach the wire once
// and in order, and the driver must settle idle.
func TestConcurrent_InterruptsPreemptForeground(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{TxBufferSize: 8, RxBufferSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- hw.Run(ctx) }()

	var want []byte
	deadline := time.Now().Add(5 * time.Second)
	for i := 0; i < 5000; i++ {
		b := byte(i)
		for u.SendByte(b) != nil {
			if time.Now().After(deadline) {
				t.Fatal("timeout waiting for TX space")
			}
			runtime.Gosched()
		}
		want = append(want, b)
	}

	for len(hw.Wire()) < len(want) {
		if time.Now().After(deadline) {
			t.Fatalf("timeout: %d of %d bytes on the wire", len(hw.Wire()), len(want))
		}
		time.Sleep(time.Millisecond)
	}
	for u.TxState() != uartx.TxIdle {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for TX to go idle")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-runDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v; want context.Canceled", err)
	}

	got := hw.Wire()
	if len(got) != len(want) {
		t.Fatalf("wire has %d bytes; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("wire[%d]=%d; want %d", i, got[i], want[i])
		}
	}
}

func TestConcurrent_EchoLoop(t *testing.T) {
	u, hw := newTestUART(t, uartx.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hw.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	waitWire := func(n int) {
		t.Helper()
		for len(hw.Wire()) < n {
			if time.Now().After(deadline) {
				t.Fatalf("timeout: %d of %d bytes on the wire", len(hw.Wire()), n)
			}
			time.Sleep(time.Millisecond)
		}
	}

	banner := "I'm alive!\r\n"
	if err := u.SendLine([]byte("I'm alive!")); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	waitWire(len(banner))
	if got := string(hw.TakeWire()); got != banner {
		t.Fatalf("banner=%q; want %q", got, banner)
	}

	// Shorter than the RX ring, so nothing is dropped.
	msg := []byte("the quick brown fox")
	hw.InjectBytes(msg)

	echoed := 0
	for echoed < len(msg) {
		if time.Now().After(deadline) {
			t.Fatalf("timeout: echoed %d of %d", echoed, len(msg))
		}
		b, err := u.ReadByte()
		if err != nil {
			runtime.Gosched()
			continue
		}
		for u.SendByte(b) != nil {
			if time.Now().After(deadline) {
				t.Fatal("timeout waiting for TX space")
			}
			runtime.Gosched()
		}
		echoed++
	}
	waitWire(len(msg))
	if got := string(hw.Wire()); got != string(msg) {
		t.Fatalf("echo=%q; want %q", got, msg)
	}
}
