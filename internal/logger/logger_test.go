package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLoggerNew(t *testing.T) {
	log := New(false)
	if log == nil {
		t.Fatal("Expected logger to be created, got nil")
	}
	if log.debug {
		t.Error("Expected debug to be false")
	}
	if !New(true).debug {
		t.Error("Expected debug to be true")
	}
}

func TestLoggerNewWithFile(t *testing.T) {
	logFilePath := filepath.Join(t.TempDir(), "build.log")

	log, err := NewWithFile(false, logFilePath)
	if err != nil {
		t.Fatalf("Failed to create logger with file: %v", err)
	}
	if log.logFile == nil {
		t.Fatal("Expected log file to be set, got nil")
	}

	log.Successf("created extractor %s", "patrons")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(logFilePath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "[DONE]") || !strings.Contains(string(content), "created extractor patrons") {
		t.Errorf("Unexpected log file content: %q", content)
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name   string
		log    func(l *Logger)
		prefix string
	}{
		{"info", func(l *Logger) { l.Infof("value %d", 1) }, "[INFO] "},
		{"success", func(l *Logger) { l.Success("value 1") }, "[DONE] "},
		{"warning", func(l *Logger) { l.Warningf("value %d", 1) }, "[WARNING] "},
		{"error", func(l *Logger) { l.Error("value 1") }, "[ERROR] "},
		{"debug", func(l *Logger) { l.Debugf("value %d", 1) }, "[DEBUG] "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewWithWriter(&buf, true))
			out := buf.String()
			if !strings.HasPrefix(out, tt.prefix) {
				t.Errorf("Expected prefix %q, got %q", tt.prefix, out)
			}
			if !strings.Contains(out, "value 1") {
				t.Errorf("Expected message in output, got %q", out)
			}
		})
	}
}

func TestLoggerDebugDisabled(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, false)
	log.Debug("hidden")
	log.Debugf("hidden %s", "too")
	if buf.Len() != 0 {
		t.Errorf("Expected no debug output, got %q", buf.String())
	}
}

func TestLoggerStep(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, false).Step(3, "Reference Link Types")
	if !strings.Contains(buf.String(), "Stage 3: Reference Link Types") {
		t.Errorf("Unexpected step banner: %q", buf.String())
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestLoggerConcurrentWrites(t *testing.T) {
	var out lockedBuffer
	log := NewWithWriter(&out, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Successf("created task %d", i)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(out.buf.String()), "\n")
	if len(lines) != 20 {
		t.Errorf("Expected 20 lines, got %d", len(lines))
	}
}

func TestGetTimestamp(t *testing.T) {
	timestamp := GetTimestamp()
	if len(timestamp) != 15 {
		t.Errorf("Expected timestamp length to be 15, got %d", len(timestamp))
	}
	if timestamp[8] != '-' {
		t.Error("Expected timestamp to have hyphen at position 8")
	}
}
