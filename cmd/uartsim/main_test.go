package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jangala-dev/tinygo-isruart/internal/trace"
)

func TestLineCommand_PrintsWire(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"line", "AB"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := `"AB\r\n"  (4 bytes)`; !strings.Contains(out.String(), want) {
		t.Fatalf("output %q does not contain %q", out.String(), want)
	}
}

func TestLineCommand_WritesTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.mpk")
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"line", "--trace", path, "--trace-format", "msgpack", "hi"})
	defer func() { rootOpts.tracePath, rootOpts.traceFormat = "", "cbor" }()
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()
	recs, err := trace.Decode(f, trace.FormatMsgpack)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var tx []byte
	for _, r := range recs {
		if r.Kind == "tx" {
			tx = append(tx, r.Data)
		}
	}
	if string(tx) != "hi\r\n" {
		t.Fatalf("traced tx=%q; want \"hi\\r\\n\"", tx)
	}
}

func TestRunStress_Accounting(t *testing.T) {
	saved := stressOpts
	defer func() { stressOpts = saved }()

	stressOpts.bytes = 100
	stressOpts.framingEvery = 10
	stressOpts.overrunEvery = 0
	stressOpts.drainEvery = 1

	s, err := newSession()
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	r := runStress(s)
	if r.injected != 100 || r.framing != 10 {
		t.Fatalf("injected=%d framing=%d; want 100,10", r.injected, r.framing)
	}
	if r.delivered != 90 || r.echoRejected != 0 || r.wire != 90 {
		t.Fatalf("delivered=%d rejected=%d wire=%d; want 90,0,90", r.delivered, r.echoRejected, r.wire)
	}
}

func TestRunStress_SlowForegroundLosesData(t *testing.T) {
	saved := stressOpts
	defer func() { stressOpts = saved }()

	stressOpts.bytes = 200
	stressOpts.framingEvery = 0
	stressOpts.overrunEvery = 50
	stressOpts.drainEvery = 64

	s, err := newSession()
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	r := runStress(s)
	if r.delivered >= r.injected {
		t.Fatalf("delivered=%d of %d; want losses with a 23 byte RX ring", r.delivered, r.injected)
	}
	if r.resets != 4 {
		t.Fatalf("resets=%d; want 4", r.resets)
	}
	if r.wire != r.delivered-r.echoRejected {
		t.Fatalf("wire=%d; want delivered-rejected=%d", r.wire, r.delivered-r.echoRejected)
	}
}
