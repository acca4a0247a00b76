package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPccHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&pccHandler{w: &buf, opID: "op-123"})

	logger.Info("snapshot uploaded", "branch", "main", "commit", "abc123")

	line := strings.TrimRight(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		t.Fatalf("line = %q, want 6 tab-separated fields", line)
	}
	if fields[1] != "INFO" {
		t.Errorf("level = %q, want INFO", fields[1])
	}
	if fields[2] != "op-123" {
		t.Errorf("opID = %q, want op-123", fields[2])
	}
	if fields[3] != "snapshot uploaded" {
		t.Errorf("message = %q, want snapshot uploaded", fields[3])
	}
	if fields[4] != "branch=main" || fields[5] != "commit=abc123" {
		t.Errorf("attrs = %v, want key=value pairs", fields[4:])
	}
}

func TestPccHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&pccHandler{w: &buf, opID: "op-123"})

	logger.With("project", "proj-1").Warn("latest pointer not advanced")

	line := strings.TrimRight(buf.String(), "\n")
	if !strings.Contains(line, "\tWARN\t") {
		t.Errorf("line = %q, want WARN level", line)
	}
	if !strings.HasSuffix(line, "\tproject=proj-1") {
		t.Errorf("line = %q, want pre-set attr appended", line)
	}
}
