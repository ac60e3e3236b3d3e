package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" || GetUserID(ctx) != "" || GetRole(ctx) != "" {
		t.Fatal("empty context should carry no values")
	}

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithRole(ctx, "admin")

	if got := GetTraceID(ctx); got != "trace-1" {
		t.Errorf("GetTraceID() = %q", got)
	}
	if got := GetUserID(ctx); got != "user-1" {
		t.Errorf("GetUserID() = %q", got)
	}
	if got := GetRole(ctx); got != "admin" {
		t.Errorf("GetRole() = %q", got)
	}

	if WithTraceID(ctx, "") != ctx {
		t.Error("empty trace id should not replace context")
	}
}

func TestNewTraceIDUnique(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	if a == "" || a == b {
		t.Fatalf("trace ids not unique: %q %q", a, b)
	}
}

func TestLogRequestWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("servicehub", "debug", "json")
	l.SetOutput(&buf)

	ctx := WithUserID(WithTraceID(context.Background(), "t-9"), "u-9")
	l.LogRequest(ctx, http.MethodGet, "/api/health", http.StatusOK, 15*time.Millisecond)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["service"] != "servicehub" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["trace_id"] != "t-9" || entry["user_id"] != "u-9" {
		t.Errorf("context fields missing: %v", entry)
	}
	if entry["path"] != "/api/health" {
		t.Errorf("path = %v", entry["path"])
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	l := New("svc", "not-a-level", "text")
	if l.GetLevel().String() != "info" {
		t.Fatalf("level = %s, want info", l.GetLevel())
	}
}
