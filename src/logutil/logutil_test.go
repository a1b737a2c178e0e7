package logutil

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactKey(t *testing.T) {
	if got := RedactKey("short"); got != "********" {
		t.Errorf("Expected fully masked short key, got %s", got)
	}
	if got := RedactKey("AIzaSyABCDEFGH1234"); got != "AIza...1234" {
		t.Errorf("Unexpected redaction %s", got)
	}
}

func TestSanitizeForLogging(t *testing.T) {
	if got := SanitizeForLogging("a\nb"); got != `"a\\nb"` {
		t.Errorf("Unexpected sanitized text %s", got)
	}
	long := strings.Repeat("가", 200)
	got := SanitizeForLogging(long)
	if !strings.HasSuffix(got, "(200 chars)") {
		t.Errorf("Expected truncation marker, got %s", got)
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFileName)
	if err := os.WriteFile(path, make([]byte, maxSizeBytes+1), 0o644); err != nil {
		t.Fatal(err)
	}
	rotate(path)
	if _, err := os.Stat(archiveName(path, 1)); err != nil {
		t.Fatalf("Expected archive .1: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected base log moved, got %v", err)
	}
}

func TestSetupWritesToDir(t *testing.T) {
	dir := t.TempDir()
	defer log.SetOutput(os.Stderr)

	Setup(true, dir)
	log.Printf("hello from test")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("Log line missing: %s", data)
	}
}
