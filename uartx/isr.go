// uartx/isr.go

package uartx

// TxState is the TX arming state. It is not stored by the driver; the
// TX-empty interrupt mask in hardware is the single source of truth.
type TxState uint8

const (
	// TxIdle: TX-empty interrupt masked, nothing in flight from the ring.
	TxIdle TxState = iota
	// TxActive: TX-empty interrupt unmasked; the handler will move the next
	// byte as soon as the transmit register is free.
	TxActive
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxActive:
		return "active"
	}
	return "unknown"
}

// TxState reports the current TX arming state as seen in hardware.
func (uart *UART) TxState() TxState {
	if uart.hw.TxInterruptEnabled() {
		return TxActive
	}
	return TxIdle
}

// HandleRxReady services one RX-ready interrupt. It runs in interrupt context
// as the RX ring's only producer.
//
// The receive register is always read, since leaving it unread keeps the
// interrupt pending. Characters with a framing error are discarded, and
// characters that find the RX ring full are dropped. A latched overrun is
// cleared by cycling the receiver.
func (uart *UART) HandleRxReady() {
	b, st := uart.hw.ReadRx()

	switch {
	case uart.rxp == nil:
		// Not initialised: consume the character and forget it.
	case st.Has(RxFramingError):
		uart.dbgRxFraming()
	default:
		if uart.rxp.Push(b) != nil {
			uart.dbgRxDrop()
			break
		}
		uart.dbgRxByte()
		select {
		case uart.notify <- struct{}{}:
		default:
		}
	}

	if st.Has(RxOverrun) {
		uart.hw.ResetReceiver()
		uart.dbgRxOverrun()
	}
}

// HandleTxEmpty services one TX-empty interrupt. It runs in interrupt context
// as the TX ring's only consumer.
//
//	TxActive, ring empty          -> mask, TxIdle, no write
//	TxActive, pop leaves data     -> write, stay TxActive
//	TxActive, pop empties ring    -> write, mask, TxIdle
func (uart *UART) HandleTxEmpty() {
	if uart.txc == nil {
		uart.hw.SetTxInterrupt(false)
		return
	}
	b, ok := uart.txc.Pop()
	if !ok {
		uart.hw.SetTxInterrupt(false)
		uart.dbgTxIdle()
		return
	}
	uart.hw.WriteTx(b)
	uart.dbgTxByte()
	if uart.txc.Len() == 0 {
		uart.hw.SetTxInterrupt(false)
		uart.dbgTxIdle()
	}
}
