// uartx/hw_avr.go

//go:build atmega328p

package uartx

import (
	"device/avr"
	"machine"
	"runtime/interrupt"
)

// USART0 is the Hardware implementation for the ATmega328P USART0.
//
// The data-register-empty interrupt (UDRE) is level triggered: while UDRIE0
// is set and UDR0 can take a byte it keeps firing, which is exactly the
// TxActive state. RX complete fires once per character and is cleared by
// reading UDR0.
type USART0 struct {
	uart *UART
}

// Serial0 is the ATmega328P USART0 (pins D0/D1 on an Arduino Uno). Its RX
// and UDRE vectors are registered at init and forward to the attached UART.
var Serial0 = &USART0{}

func init() {
	interrupt.New(avr.IRQ_USART_RX, func(interrupt.Interrupt) {
		if u := Serial0.uart; u != nil {
			u.HandleRxReady()
		} else {
			_ = avr.UDR0.Get()
		}
	})
	interrupt.New(avr.IRQ_USART_UDRE, func(interrupt.Interrupt) {
		if u := Serial0.uart; u != nil {
			u.HandleTxEmpty()
		} else {
			avr.UCSR0B.ClearBits(avr.UCSR0B_UDRIE0)
		}
	})
}

// Attach routes the USART0 vectors to u. Call it before u.Init.
func (s *USART0) Attach(u *UART) { s.uart = u }

// EnableInterrupts sets the global interrupt flag.
func (s *USART0) EnableInterrupts() { avr.Asm("sei") }

// Configure implements Hardware. It uses double-speed mode, where
// UBRR = F_CPU/(8*baud) - 1 (103 for 9600 baud at 8 MHz).
func (s *USART0) Configure(baud uint32) error {
	ubrr := machine.CPUFrequency()/(8*baud) - 1
	avr.UBRR0H.Set(uint8(ubrr >> 8))
	avr.UBRR0L.Set(uint8(ubrr))
	avr.UCSR0A.Set(avr.UCSR0A_U2X0)
	// Receiver, transmitter and RX complete interrupt on; UDRIE0 off.
	avr.UCSR0B.Set(avr.UCSR0B_TXEN0 | avr.UCSR0B_RXEN0 | avr.UCSR0B_RXCIE0)
	// Asynchronous, no parity, 1 stop bit, 8 data bits.
	avr.UCSR0C.Set(avr.UCSR0C_UCSZ00 | avr.UCSR0C_UCSZ01)
	return nil
}

// WriteTx implements Hardware.
func (s *USART0) WriteTx(b byte) { avr.UDR0.Set(b) }

// ReadRx implements Hardware. FE0 and DOR0 describe the character at the
// head of the receive buffer, so they are sampled before UDR0 is read.
func (s *USART0) ReadRx() (byte, RxStatus) {
	a := avr.UCSR0A.Get()
	var st RxStatus
	if a&avr.UCSR0A_FE0 != 0 {
		st |= RxFramingError
	}
	if a&avr.UCSR0A_DOR0 != 0 {
		st |= RxOverrun
	}
	return avr.UDR0.Get(), st
}

// ResetReceiver implements Hardware.
func (s *USART0) ResetReceiver() {
	avr.UCSR0B.ClearBits(avr.UCSR0B_RXEN0)
	avr.UCSR0B.SetBits(avr.UCSR0B_RXEN0)
}

// SetTxInterrupt implements Hardware.
func (s *USART0) SetTxInterrupt(enabled bool) {
	if enabled {
		avr.UCSR0B.SetBits(avr.UCSR0B_UDRIE0)
	} else {
		avr.UCSR0B.ClearBits(avr.UCSR0B_UDRIE0)
	}
}

// TxInterruptEnabled implements Hardware.
func (s *USART0) TxInterruptEnabled() bool {
	return avr.UCSR0B.HasBits(avr.UCSR0B_UDRIE0)
}
