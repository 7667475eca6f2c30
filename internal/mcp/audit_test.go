package mcp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuditLogger_NilSafe(t *testing.T) {
	var a *AuditLogger
	a.Log(AuditEntry{Tool: "x"})
	if err := a.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
}

func TestAuditLogger_WritesLines(t *testing.T) {
	dir := t.TempDir()
	a := NewAuditLogger(dir)
	if a == nil {
		t.Fatal("NewAuditLogger returned nil")
	}
	a.Log(AuditEntry{Timestamp: time.Now(), Tool: "one", Status: "success"})
	a.Log(AuditEntry{Timestamp: time.Now(), Tool: "two", Status: "error", Error: "boom"})
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Writes after close are dropped.
	a.Log(AuditEntry{Tool: "three"})

	data, err := os.ReadFile(filepath.Join(dir, AuditFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], `"error":"boom"`) {
		t.Errorf("line 2 = %s", lines[1])
	}
}

func TestAuditParams(t *testing.T) {
	prob := 0.2
	got := auditParams(map[string]any{
		"neurons":         50,
		"connection_prob": &prob,
		"synapse":         "current",
		"output":          "/home/user/secret.csv",
		"label":           "",
		"unknown":         "dropped",
	})

	if got["neurons"] != "50" {
		t.Errorf("neurons = %q", got["neurons"])
	}
	if got["connection_prob"] != "0.2" {
		t.Errorf("connection_prob = %q, want dereferenced value", got["connection_prob"])
	}
	if got["synapse"] != "current" {
		t.Errorf("synapse = %q", got["synapse"])
	}
	if got["output"] != "(set)" {
		t.Errorf("output = %q, want (set)", got["output"])
	}
	if _, ok := got["label"]; ok {
		t.Error("empty params should be skipped")
	}
	if _, ok := got["unknown"]; ok {
		t.Error("unknown params should be dropped")
	}
	if got["_param_count"] != "5" {
		t.Errorf("_param_count = %q, want 5", got["_param_count"])
	}
}

func TestAuditTool_Status(t *testing.T) {
	dir := t.TempDir()
	s := &Server{audit: NewAuditLogger(dir)}
	s.auditTool("lifnet_runs", time.Now(), nil, nil)
	s.auditTool("lifnet_runs", time.Now(), errors.New("nope"), nil)
	s.audit.Close()

	data, err := os.ReadFile(filepath.Join(dir, AuditFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), `"status":"success"`) != 1 || strings.Count(string(data), `"status":"error"`) != 1 {
		t.Errorf("unexpected audit content:\n%s", data)
	}
}
