package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithReference(ctx, "ref_ABC")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"reference":"ref_ABC"`)) {
		t.Fatalf("expected reference to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerCriticalMarksSeverity(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithEventKind(context.Background(), "charge.success")
	log.Critical(ctx, "order missing after retry", errors.New("not found"))

	if !bytes.Contains(buf.Bytes(), []byte(`"severity":"critical"`)) {
		t.Fatalf("expected critical severity; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"error"`)) {
		t.Fatalf("expected error level; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled; entry=%s", buf.String())
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected no stack when warn stack disabled; entry=%s", buf.String())
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", lvl)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"ada@example.com":  "a***@example.com",
		" bo@shop.ng ":     "b***@shop.ng",
		"no-at-sign":       "***",
		"@example.com":     "***",
		"x@y@aurelia.shop": "x***@aurelia.shop",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoggerWithCustomerMasksEmail(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithCustomer(context.Background(), "ada@example.com")
	ctx = log.WithDelivery(ctx, "charge.success:302961")
	log.Info(ctx, "charge reconciled")

	if bytes.Contains(buf.Bytes(), []byte("ada@example.com")) {
		t.Fatalf("expected email to be masked; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"customer":"a***@example.com"`)) {
		t.Fatalf("expected masked customer; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"delivery_id":"charge.success:302961"`)) {
		t.Fatalf("expected delivery id; entry=%s", buf.String())
	}
}
