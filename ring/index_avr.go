// ring/index_avr.go

//go:build avr

package ring

import "runtime/volatile"

// On AVR an index is one byte, so a load or store is a single instruction
// and neither side ever masks interrupts to read the other's index.
const maxSize = 1 << 8

type index struct{ r volatile.Register8 }

func (i *index) Load() uint32   { return uint32(i.r.Get()) }
func (i *index) Store(v uint32) { i.r.Set(uint8(v)) }

// Slot accesses are volatile too so the compiler keeps them ordered with
// the index stores.
func loadSlot(s []byte, i uint32) byte     { return volatile.LoadUint8(&s[i]) }
func storeSlot(s []byte, i uint32, v byte) { volatile.StoreUint8(&s[i], v) }
