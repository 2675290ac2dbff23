// uartx/hw_rp2.go

//go:build rp2040 || rp2350

package uartx

import (
	"device/arm"
	"device/rp"
	"machine"
	"runtime/interrupt"
)

// PL011 is the Hardware implementation for one RP2040/RP2350 UART.
//
// The FIFOs are disabled so both directions work one character at a time:
// RXIM fires per received character and the TX path is serviced whenever
// TXIM is unmasked and the holding register is empty (TXFE). The PL011 only
// raises TXRIS on a transition, so SetTxInterrupt(true) pends the IRQ
// itself when the holding register is already empty.
type PL011 struct {
	Bus *rp.UART0_Type
	TX  machine.Pin
	RX  machine.Pin

	irq       int
	Interrupt interrupt.Interrupt

	uart *UART
}

// UART peripherals on the RP2040/RP2350, on the default pins.
var (
	// PL011_0 is UART0.
	PL011_0  = &_PL011_0
	_PL011_0 = PL011{Bus: rp.UART0, TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN, irq: rp.IRQ_UART0_IRQ}

	// PL011_1 is UART1.
	PL011_1  = &_PL011_1
	_PL011_1 = PL011{Bus: rp.UART1, TX: machine.UART1_TX_PIN, RX: machine.UART1_RX_PIN, irq: rp.IRQ_UART1_IRQ}
)

func init() {
	PL011_0.Interrupt = interrupt.New(rp.IRQ_UART0_IRQ, _PL011_0.handleInterrupt)
	PL011_1.Interrupt = interrupt.New(rp.IRQ_UART1_IRQ, _PL011_1.handleInterrupt)
}

// Attach routes this peripheral's interrupt to u. Call it before u.Init.
func (p *PL011) Attach(u *UART) { p.uart = u }

// EnableInterrupts unmasks the UART line in the NVIC. Until this is called
// the driver accepts data but nothing moves on the wire.
func (p *PL011) EnableInterrupts() { p.Interrupt.Enable() }

// Configure implements Hardware.
func (p *PL011) Configure(baud uint32) error {
	p.reset()

	// Disable while configuring.
	p.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	if p.TX != machine.NoPin {
		p.TX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if p.RX != machine.NoPin {
		p.RX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}

	p.setBaudRate(baud)
	// 8N1, FEN clear. Full write, not OR-ing.
	p.Bus.UARTLCR_H.Set(uint32(8-5) << rp.UART0_UARTLCR_H_WLEN_Pos)

	// Clear pending IRQs, purge the receive register, clear sticky errors.
	p.Bus.UARTICR.Set(0x7FF)
	for !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = p.Bus.UARTDR.Get()
	}
	p.Bus.UARTRSR.Set(0)

	p.Bus.UARTCR.Set(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	// RX unmasked, TX masked until the first SendByte.
	p.Interrupt.SetPriority(0x80)
	p.Bus.UARTIMSC.Set(rp.UART0_UARTIMSC_RXIM)
	return nil
}

// setBaudRate programs the integer and fractional divisors and performs the
// LCR_H write the PL011 needs to latch them.
func (p *PL011) setBaudRate(br uint32) {
	div := 8 * machine.CPUFrequency() / br

	ibrd := div >> 7
	var fbrd uint32
	switch {
	case ibrd == 0:
		ibrd = 1
		fbrd = 0
	case ibrd >= 65535:
		ibrd = 65535
		fbrd = 0
	default:
		fbrd = ((div & 0x7f) + 1) / 2
	}

	p.Bus.UARTIBRD.Set(ibrd)
	p.Bus.UARTFBRD.Set(fbrd)
	p.Bus.UARTLCR_H.Set(p.Bus.UARTLCR_H.Get())
}

// reset asserts and releases the peripheral reset.
func (p *PL011) reset() {
	var mask uint32
	switch p.Bus {
	case rp.UART0:
		mask = rp.RESETS_RESET_UART0
	case rp.UART1:
		mask = rp.RESETS_RESET_UART1
	}
	rp.RESETS.RESET.SetBits(mask)
	rp.RESETS.RESET.ClearBits(mask)
	for !rp.RESETS.RESET_DONE.HasBits(mask) {
	}
}

// WriteTx implements Hardware.
func (p *PL011) WriteTx(b byte) { p.Bus.UARTDR.Set(uint32(b)) }

// ReadRx implements Hardware. The error bits live in the upper half of DR
// next to the character they belong to.
func (p *PL011) ReadRx() (byte, RxStatus) {
	r := p.Bus.UARTDR.Get()
	var st RxStatus
	if r&(rp.UART0_UARTDR_FE|rp.UART0_UARTDR_BE) != 0 {
		st |= RxFramingError
	}
	if r&rp.UART0_UARTDR_OE != 0 {
		st |= RxOverrun
	}
	return byte(r & 0xFF), st
}

// ResetReceiver implements Hardware.
func (p *PL011) ResetReceiver() {
	p.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_RXE)
	p.Bus.UARTRSR.Set(0)
	p.Bus.UARTCR.SetBits(rp.UART0_UARTCR_RXE)
}

// SetTxInterrupt implements Hardware.
func (p *PL011) SetTxInterrupt(enabled bool) {
	if !enabled {
		p.Bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
		p.Bus.UARTICR.Set(rp.UART0_UARTICR_TXIC)
		return
	}
	if p.Bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM) {
		return
	}
	p.Bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_TXIM)
	if p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFE) {
		arm.NVIC.ISPR[p.irq>>5].Set(1 << uint(p.irq&31))
	}
}

// TxInterruptEnabled implements Hardware.
func (p *PL011) TxInterruptEnabled() bool {
	return p.Bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM)
}

// handleInterrupt demultiplexes the shared UART IRQ line. RX is serviced
// first; TX whenever TXIM is unmasked and the holding register is empty,
// which also covers the IRQ pended by SetTxInterrupt.
func (p *PL011) handleInterrupt(interrupt.Interrupt) {
	u := p.uart
	if u == nil {
		p.Bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
		return
	}

	if p.Bus.UARTMIS.HasBits(rp.UART0_UARTMIS_RXMIS) {
		for !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
			u.HandleRxReady()
		}
		p.Bus.UARTICR.Set(rp.UART0_UARTICR_RXIC)
	}

	if p.Bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM) && p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFE) {
		p.Bus.UARTICR.Set(rp.UART0_UARTICR_TXIC)
		u.HandleTxEmpty()
	}
}
