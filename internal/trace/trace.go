// Package trace records simulated peripheral events and writes them out as
// CBOR or MessagePack for offline inspection.
package trace

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jangala-dev/tinygo-isruart/sim"
)

// Format selects the encoding used by Encode.
type Format uint8

const (
	FormatCBOR Format = iota
	FormatMsgpack
)

var ErrUnknownFormat = errors.New("trace: unknown format")

// ParseFormat accepts "cbor" and "msgpack" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "cbor":
		return FormatCBOR, nil
	case "msgpack", "mpk":
		return FormatMsgpack, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatMsgpack:
		return "msgpack"
	}
	return "unknown"
}

// Record is the serialised form of one sim.Event.
type Record struct {
	Seq    uint64 `cbor:"seq" msgpack:"seq"`
	UnixNs int64  `cbor:"t" msgpack:"t"`
	Kind   string `cbor:"kind" msgpack:"kind"`
	Data   uint8  `cbor:"data" msgpack:"data"`
	Status uint8  `cbor:"status,omitempty" msgpack:"status,omitempty"`
}

// Recorder collects events. Its Record method can be passed to
// sim.WithTracer; it is safe to call from the interrupt goroutine.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Record appends ev.
func (r *Recorder) Record(ev sim.Event) {
	r.mu.Lock()
	r.records = append(r.records, Record{
		Seq:    ev.Seq,
		UnixNs: ev.Time.UnixNano(),
		Kind:   ev.Kind.String(),
		Data:   ev.Data,
		Status: uint8(ev.Status),
	})
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Encode writes all records to w as a single array in the given format.
func (r *Recorder) Encode(w io.Writer, f Format) error {
	recs := r.Records()
	switch f {
	case FormatCBOR:
		return cbor.NewEncoder(w).Encode(recs)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(recs)
	}
	return ErrUnknownFormat
}

// Decode reads records written by Encode.
func Decode(rd io.Reader, f Format) ([]Record, error) {
	var recs []Record
	var err error
	switch f {
	case FormatCBOR:
		err = cbor.NewDecoder(rd).Decode(&recs)
	case FormatMsgpack:
		err = msgpack.NewDecoder(rd).Decode(&recs)
	default:
		err = ErrUnknownFormat
	}
	return recs, err
}
