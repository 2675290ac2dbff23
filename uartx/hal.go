package uartx

// RxStatus carries the per-character error flags latched by the receiver.
type RxStatus uint8

const (
	// RxFramingError means the stop bit of this character was not seen.
	RxFramingError RxStatus = 1 << iota
	// RxOverrun means a character arrived before the previous one was read
	// and the receiver has stopped accepting data.
	RxOverrun
)

// Has reports whether all bits of f are set in s.
func (s RxStatus) Has(f RxStatus) bool { return s&f == f }

// Hardware is the register-level capability the driver needs from one UART
// peripheral. Every method is a short register access and must not block.
//
// Contract with the driver:
//   - HandleRxReady is invoked once per received character; HandleTxEmpty
//     whenever the TX-empty interrupt is unmasked and the transmit register
//     can take a byte. The two handlers never preempt each other and the
//     foreground never runs while a handler is running.
//   - SetTxInterrupt(true) is only called from the foreground and
//     SetTxInterrupt(false) only from HandleTxEmpty.
type Hardware interface {
	// Configure resets the peripheral to 8N1 at baud with the receiver and
	// transmitter on, the RX interrupt unmasked and the TX-empty interrupt
	// masked.
	Configure(baud uint32) error

	// WriteTx writes one byte to the transmit register.
	WriteTx(b byte)

	// ReadRx reads one byte from the receive register together with the
	// error flags that belong to it. The read clears the RX interrupt source.
	ReadRx() (byte, RxStatus)

	// ResetReceiver disables and re-enables the receive function to clear a
	// latched overrun.
	ResetReceiver()

	// SetTxInterrupt masks or unmasks the TX-empty interrupt without touching
	// the RX interrupt.
	SetTxInterrupt(enabled bool)

	// TxInterruptEnabled reports whether the TX-empty interrupt is unmasked.
	TxInterruptEnabled() bool
}
