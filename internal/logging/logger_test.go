package logging

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

// TestDebugGate checks debug lines only appear when the gate is on while
// info and warnings always log
func TestDebugGate(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetDebug(false)
	})

	SetDebug(false)
	Debug("test", "hidden %d", 1)
	if strings.Contains(buf.String(), "hidden") {
		t.Error("Debug should be silent when the gate is off")
	}

	SetDebug(true)
	Debug("test", "shown %d", 2)
	if !strings.Contains(buf.String(), "[test] shown 2") {
		t.Errorf("Expected gated debug output, got %q", buf.String())
	}

	Info("test", "hello")
	if !strings.Contains(buf.String(), "[test] hello") {
		t.Error("Info should always log")
	}

	Warn("test", "uh oh")
	if !strings.Contains(buf.String(), "[test] WARN uh oh") {
		t.Error("Warn should always log with the WARN marker")
	}
}
