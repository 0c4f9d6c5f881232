package logger

import (
	"bytes"
	"os"
	"testing"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
	ResetDegradedCount()
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("scope %s", "rules")

	if got := buf.String(); got != "[DEBUG] scope rules\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("hidden")
	Info("hidden")
	Section("hidden")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Retrieval")

	if got := buf.String(); got != "\n=== Retrieval ===\n" {
		t.Errorf("unexpected section output: %q", got)
	}
}

func TestInfo(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Info("built snapshot with %d sections", 42)

	if got := buf.String(); got != "[INFO] built snapshot with 42 sections\n" {
		t.Errorf("unexpected info output: %q", got)
	}
}

func TestWarn_PrintedWithoutVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Warn("embedding backend slow")

	if got := buf.String(); got != "[WARN] embedding backend slow\n" {
		t.Errorf("unexpected warn output: %q", got)
	}
}

func TestDegraded(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	ResetDegradedCount()

	Degraded("router", "classifier timed out")
	Degraded("router", "classifier unreachable")

	if got := DegradedCount(); got != 2 {
		t.Errorf("expected degraded count 2, got %d", got)
	}
	want := "[DEGRADED] router: classifier timed out\n[DEGRADED] router: classifier unreachable\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected degraded output: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			SetVerbose(true)
			Debug("concurrent %d", i)
			IsVerbose()
			SetVerbose(false)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
