// ring/ring.go

// Package ring provides a fixed-capacity single-producer / single-consumer
// byte ring that is safe to share between an interrupt handler and
// foreground code without locks or masking interrupts.
//
// Semantics
//   - Capacity N >= 2 is fixed at construction. One slot is always kept free
//     as a sentinel, so at most N-1 bytes are buffered.
//   - Empty: head == tail. Full: (head+1) mod N == tail.
//   - head is stored only by the Producer, tail only by the Consumer. Each
//     index is loaded and stored in one access (a byte on AVR, an atomic
//     word elsewhere), so the other side always observes either the old or
//     the new value. No interrupt masking is involved on any target.
//   - Push writes the slot before publishing head; Pop reads the slot
//     before publishing tail.
//
// The two roles are separate types. Hand the Producer to whichever context
// fills the ring and the Consumer to whichever context drains it.
package ring

import "errors"

// ErrFull is returned by Push when no free slot is left. The value is dropped.
var ErrFull = errors.New("ring: buffer full")

// Empty is the byte Pop returns alongside false when there is nothing to read.
const Empty byte = 0x00

type buffer struct {
	storage []byte
	head    index // next write index, producer-owned
	tail    index // next read index, consumer-owned
}

// New allocates a ring with n slots (n-1 usable) and returns its two role
// handles. It panics if n < 2 or n exceeds the target's index range
// (256 on AVR, 1<<31 elsewhere).
func New(n int) (*Producer, *Consumer) {
	if n < 2 || uint64(n) > maxSize {
		panic("ring: size out of range")
	}
	b := &buffer{storage: make([]byte, n)}
	return &Producer{b: b}, &Consumer{b: b}
}

func (b *buffer) size() uint32 { return uint32(len(b.storage)) }

func (b *buffer) next(i uint32) uint32 {
	i++
	if i == b.size() {
		return 0
	}
	return i
}

func (b *buffer) used() int {
	n := b.size()
	return int((b.head.Load() + n - b.tail.Load()) % n)
}

// Producer is the write half of a ring.
type Producer struct{ b *buffer }

// Push stores v. If the ring is full it returns ErrFull and changes nothing.
func (p *Producer) Push(v byte) error {
	h := p.b.head.Load()
	next := p.b.next(h)
	if next == p.b.tail.Load() {
		return ErrFull
	}
	storeSlot(p.b.storage, h, v) // 1) write data
	p.b.head.Store(next)         // 2) publish
	return nil
}

// Len returns the number of buffered bytes.
func (p *Producer) Len() int { return p.b.used() }

// Cap returns the number of bytes the ring can hold (size-1).
func (p *Producer) Cap() int { return len(p.b.storage) - 1 }

// Free returns how many more bytes Push would currently accept.
func (p *Producer) Free() int { return p.Cap() - p.Len() }

// Consumer is the read half of a ring.
type Consumer struct{ b *buffer }

// Pop removes and returns the oldest byte. It returns (Empty, false) when
// there is nothing buffered.
func (c *Consumer) Pop() (byte, bool) {
	t := c.b.tail.Load()
	if t == c.b.head.Load() {
		return Empty, false
	}
	v := loadSlot(c.b.storage, t) // 1) read current element
	c.b.tail.Store(c.b.next(t))   // 2) publish consumption
	return v, true
}

// Len returns the number of buffered bytes.
func (c *Consumer) Len() int { return c.b.used() }

// Cap returns the number of bytes the ring can hold (size-1).
func (c *Consumer) Cap() int { return len(c.b.storage) - 1 }
