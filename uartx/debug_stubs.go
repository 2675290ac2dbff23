//go:build !uartxdebug

package uartx

type stats struct{}

func (u *UART) dbgRxByte()    {}
func (u *UART) dbgRxDrop()    {}
func (u *UART) dbgRxFraming() {}
func (u *UART) dbgRxOverrun() {}
func (u *UART) dbgTxByte()    {}
func (u *UART) dbgTxDrop()    {}
func (u *UART) dbgTxIdle()    {}

type Stats struct{}

func (u *UART) DebugReset()       {}
func (u *UART) DebugStats() Stats { return Stats{} }
