// ring/index_atomic.go

//go:build !avr

package ring

import "sync/atomic"

const maxSize = 1 << 31

// index is a word-sized position. The atomic store publishes the slot
// written before it.
type index struct{ v atomic.Uint32 }

func (i *index) Load() uint32   { return i.v.Load() }
func (i *index) Store(v uint32) { i.v.Store(v) }

func loadSlot(s []byte, i uint32) byte     { return s[i] }
func storeSlot(s []byte, i uint32, v byte) { s[i] = v }
