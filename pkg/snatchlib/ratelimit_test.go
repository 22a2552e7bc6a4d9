package snatchlib

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestThrottleReader_Unthrottled(t *testing.T) {
	src := strings.NewReader("hello world")
	r := NewThrottleReader(src, 0)

	start := time.Now()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("read %q", data)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("unthrottled read took %s", elapsed)
	}
}

func TestThrottleReader_LimitsRate(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3000)
	// 2000 B/s with an empty initial bucket: 3000 bytes need >= 1s.
	r := NewThrottleReader(bytes.NewReader(payload), 2000)

	start := time.Now()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("read %d bytes, want %d", len(data), len(payload))
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("throttled read of 3000 B at 2000 B/s took only %s", elapsed)
	}
}

func TestThrottleReader_SetRate(t *testing.T) {
	r := NewThrottleReader(strings.NewReader("data"), 100)
	r.SetRate(0)
	if got := r.Rate(); got != 0 {
		t.Fatalf("Rate = %d, want 0", got)
	}
	// Disabled throttling passes straight through.
	data, err := io.ReadAll(r)
	if err != nil || string(data) != "data" {
		t.Fatalf("ReadAll = %q, %v", data, err)
	}
}
