//go:build rp2040 || rp2350

// Loopback self-test for the interrupt-driven driver on an RP2 board.
// Jumper UART0 TX to RX (Pico: GP0 to GP1) before flashing.
package main

import (
	"errors"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-isruart/uartx"
)

const baud = 115200

var (
	hw = uartx.PL011_0
	u  = uartx.New(hw)
)

// pump moves received bytes into out until n bytes are collected or the
// deadline passes, feeding src to the TX ring as space allows.
func pump(src []byte, n int, d time.Duration) []byte {
	out := make([]byte, 0, n)
	deadline := time.Now().Add(d)
	var buf [32]byte
	for len(out) < n && time.Now().Before(deadline) {
		if len(src) > 0 {
			src = src[u.TryWrite(src):]
		}
		if k := u.TryRead(buf[:]); k > 0 {
			out = append(out, buf[:k]...)
			continue
		}
		select {
		case <-u.Readable():
		case <-time.After(time.Millisecond):
		}
	}
	return out
}

func drain() {
	time.Sleep(20 * time.Millisecond)
	var tmp [32]byte
	for u.TryRead(tmp[:]) > 0 {
	}
}

func ledBlink(times int, on time.Duration) {
	for i := 0; i < times; i++ {
		machine.LED.High()
		time.Sleep(on)
		machine.LED.Low()
		time.Sleep(on)
	}
}

func main() {
	// Give the monitor time to attach.
	time.Sleep(3 * time.Second)
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	println("uartx self-test starting")

	hw.Attach(u)
	if err := u.Init(uartx.Config{BaudRate: baud}); err != nil {
		println("Init failed:", err.Error())
		for {
			ledBlink(1, 500*time.Millisecond)
		}
	}
	hw.EnableInterrupts()

	pass, fail := 0, 0
	defer func() {
		println("")
		println("Summary")
		println("  passed =", pass)
		println("  failed =", fail)
		if fail == 0 {
			ledBlink(3, 120*time.Millisecond)
		} else {
			for {
				ledBlink(1, 600*time.Millisecond)
				time.Sleep(800 * time.Millisecond)
			}
		}
	}()

	run := func(name string, f func() string) {
		println("")
		println("[Test]", name)
		drain()
		if msg := f(); msg == "" {
			println("  PASS")
			pass++
		} else {
			println("  FAIL:", msg)
			fail++
		}
	}

	run("line: SendLine appends CR LF", func() string {
		if err := u.SendLine([]byte("I'm alive!")); err != nil {
			return "SendLine error"
		}
		got := pump(nil, 12, time.Second)
		if string(got) != "I'm alive!\r\n" {
			return "got " + itoa(len(got)) + " bytes"
		}
		return ""
	})

	run("line: nil input rejected", func() string {
		if err := u.SendLine(nil); !errors.Is(err, uartx.ErrInvalidInput) {
			return "want ErrInvalidInput"
		}
		if u.TxLen() != 0 {
			return "bytes queued"
		}
		return ""
	})

	run("tx: idle after drain", func() string {
		_ = u.SendByte('x')
		pump(nil, 1, time.Second)
		time.Sleep(time.Millisecond)
		if u.TxState() != uartx.TxIdle {
			return "TX interrupt still armed"
		}
		return ""
	})

	run("tx: full ring reports ErrFull", func() string {
		free := u.TxFree()
		n, err := u.Write(make([]byte, free+8))
		if !errors.Is(err, uartx.ErrFull) {
			return "no ErrFull"
		}
		if n < free {
			return "accepted " + itoa(n) + " < free " + itoa(free)
		}
		return ""
	})

	run("rx: overflow keeps oldest bytes", func() string {
		src := make([]byte, 64)
		for i := range src {
			src[i] = byte('A' + i%26)
		}
		// Do not read while the burst arrives.
		sent := 0
		deadline := time.Now().Add(time.Second)
		for sent < len(src) && time.Now().Before(deadline) {
			sent += u.TryWrite(src[sent:])
		}
		time.Sleep(20 * time.Millisecond)
		want := uartx.DefaultBufferSize - 1
		if u.RxLen() != want {
			return "RxLen " + itoa(u.RxLen()) + " want " + itoa(want)
		}
		var got [uartx.DefaultBufferSize]byte
		n := u.TryRead(got[:])
		if string(got[:n]) != string(src[:want]) {
			return "prefix mismatch"
		}
		return ""
	})

	run("integrity: 4 KiB read while writing", func() string {
		n := 4 * 1024
		src := make([]byte, n)
		var x uint32 = 0x12345678
		for i := range src {
			x = 1664525*x + 1013904223
			src[i] = byte(x >> 24)
		}
		start := time.Now()
		got := pump(src, n, 3*time.Second)
		if len(got) != n {
			return "short read " + itoa(len(got))
		}
		for i := range src {
			if got[i] != src[i] {
				return "mismatch at " + itoa(i)
			}
		}
		ms := int(time.Since(start) / time.Millisecond)
		if ms <= 0 {
			ms = 1
		}
		println("  speed =", itoa(n*8/ms), "kbps")
		return ""
	})

	println("")
	println("All tests completed")
}

// --- tiny helpers (no fmt) ---

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := false
	if n < 0 {
		neg = true
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + (n % 10))
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
