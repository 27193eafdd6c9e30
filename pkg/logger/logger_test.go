package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Warn)
	l.AddTransport("console", &buf)
	l.RemoveTransport("missing") // no-op

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected debug/info to be filtered, got: %q", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Fatalf("expected warn/error lines, got: %q", out)
	}
}

func TestRemoveTransportStopsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Debug)
	l.AddTransport("extra", &buf)
	l.RemoveTransport("extra")

	l.Info("nobody should see this")
	if buf.Len() != 0 {
		t.Fatalf("expected no output after removing transport, got: %q", buf.String())
	}
}

func TestOnLoggingSinkFiresRegardlessOfLevel(t *testing.T) {
	l := New(Silent)
	var got []Record
	l.OnLogging(func(r Record) { got = append(got, r) })

	l.InfoCF("component", "hello", Fields{"k": "v"})

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Component != "component" || got[0].Message != "hello" || got[0].Fields["k"] != "v" {
		t.Fatalf("unexpected record: %+v", got[0])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   Debug,
		"info":    Info,
		"warn":    Warn,
		"error":   Error,
		"silent":  Silent,
		"bogus":   Silent,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
