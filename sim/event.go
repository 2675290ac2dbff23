package sim

import (
	"time"

	"github.com/jangala-dev/tinygo-isruart/uartx"
)

// EventKind identifies a register-level event.
type EventKind uint8

const (
	EventConfigure EventKind = iota + 1
	EventTxWrite             // byte written to the transmit register
	EventTxArm               // TX-empty interrupt unmasked
	EventTxMask              // TX-empty interrupt masked
	EventRxRead              // receive register read
	EventRxReset             // receiver disable/enable cycle
)

func (k EventKind) String() string {
	switch k {
	case EventConfigure:
		return "configure"
	case EventTxWrite:
		return "tx"
	case EventTxArm:
		return "tx-arm"
	case EventTxMask:
		return "tx-mask"
	case EventRxRead:
		return "rx"
	case EventRxReset:
		return "rx-reset"
	}
	return "unknown"
}

// Event is one observable peripheral action.
type Event struct {
	Seq    uint64
	Time   time.Time
	Kind   EventKind
	Data   byte
	Status uartx.RxStatus
}
