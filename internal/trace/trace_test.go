package trace

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jangala-dev/tinygo-isruart/sim"
	"github.com/jangala-dev/tinygo-isruart/uartx"
)

func recordSession(t *testing.T) *Recorder {
	t.Helper()
	rec := &Recorder{}
	hw := sim.New(sim.WithTracer(rec.Record))
	u := uartx.New(hw)
	hw.Attach(u)
	if err := u.Init(uartx.Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_ = u.SendLine([]byte("ok"))
	hw.Inject(sim.Frame{Data: '!', FramingError: true})
	hw.Drain(100)
	return rec
}

func TestEncode_DecodesBack(t *testing.T) {
	for _, f := range []Format{FormatCBOR, FormatMsgpack} {
		t.Run(f.String(), func(t *testing.T) {
			rec := recordSession(t)

			var buf bytes.Buffer
			if err := rec.Encode(&buf, f); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(&buf, f)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			want := rec.Records()
			if len(got) != len(want) {
				t.Fatalf("decoded %d records; want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("record %d=%+v; want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestRecorder_CapturesDriverTraffic(t *testing.T) {
	rec := recordSession(t)

	var tx []byte
	framing := 0
	for _, r := range rec.Records() {
		switch r.Kind {
		case "tx":
			tx = append(tx, r.Data)
		case "rx":
			if uartx.RxStatus(r.Status).Has(uartx.RxFramingError) {
				framing++
			}
		}
	}
	if string(tx) != "ok\r\n" {
		t.Fatalf("tx=%q; want \"ok\\r\\n\"", tx)
	}
	if framing != 1 {
		t.Fatalf("framing errors=%d; want 1", framing)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("CBOR"); err != nil || f != FormatCBOR {
		t.Fatalf("ParseFormat(CBOR)=%v,%v", f, err)
	}
	if f, err := ParseFormat("msgpack"); err != nil || f != FormatMsgpack {
		t.Fatalf("ParseFormat(msgpack)=%v,%v", f, err)
	}
	if _, err := ParseFormat("json"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("ParseFormat(json) err=%v; want ErrUnknownFormat", err)
	}
}
