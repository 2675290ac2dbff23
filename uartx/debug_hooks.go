//go:build uartxdebug

package uartx

import "sync/atomic"

// stats is embedded in UART; the handlers and the foreground update
// disjoint counters, each with a single atomic add.
type stats struct {
	rxBytes    atomic.Uint32
	rxDrops    atomic.Uint32
	rxFraming  atomic.Uint32
	rxOverruns atomic.Uint32
	txBytes    atomic.Uint32
	txDrops    atomic.Uint32
	txIdles    atomic.Uint32
}

func (u *UART) dbgRxByte()    { u.stats.rxBytes.Add(1) }
func (u *UART) dbgRxDrop()    { u.stats.rxDrops.Add(1) }
func (u *UART) dbgRxFraming() { u.stats.rxFraming.Add(1) }
func (u *UART) dbgRxOverrun() { u.stats.rxOverruns.Add(1) }
func (u *UART) dbgTxByte()    { u.stats.txBytes.Add(1) }
func (u *UART) dbgTxDrop()    { u.stats.txDrops.Add(1) }
func (u *UART) dbgTxIdle()    { u.stats.txIdles.Add(1) }

// Stats holds counters since the last reset.
type Stats struct {
	// RX handler
	RxBytes    uint32 // characters stored in the RX ring
	RxDrops    uint32 // characters lost to a full RX ring
	ErrFraming uint32 // characters discarded for a framing error
	ErrOverrun uint32 // receiver reset cycles after an overrun

	// TX
	TxBytes uint32 // bytes written to the transmit register
	TxDrops uint32 // SendByte calls rejected with ErrFull
	TxIdles uint32 // TxActive -> TxIdle transitions
}

// DebugReset zeroes all counters.
func (u *UART) DebugReset() {
	u.stats.rxBytes.Store(0)
	u.stats.rxDrops.Store(0)
	u.stats.rxFraming.Store(0)
	u.stats.rxOverruns.Store(0)
	u.stats.txBytes.Store(0)
	u.stats.txDrops.Store(0)
	u.stats.txIdles.Store(0)
}

// DebugStats returns a copy of the counters.
func (u *UART) DebugStats() Stats {
	return Stats{
		RxBytes:    u.stats.rxBytes.Load(),
		RxDrops:    u.stats.rxDrops.Load(),
		ErrFraming: u.stats.rxFraming.Load(),
		ErrOverrun: u.stats.rxOverruns.Load(),

		TxBytes: u.stats.txBytes.Load(),
		TxDrops: u.stats.txDrops.Load(),
		TxIdles: u.stats.txIdles.Load(),
	}
}
