package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	plumber "github.com/MostlyMax/plumber-queue"
	"github.com/MostlyMax/plumber-queue/pkg/message"
	"github.com/MostlyMax/plumber-queue/pkg/queue"
)

type testLogger struct{}

func (testLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func writeFile(t *testing.T, path string, msgs []plumber.Message) {
	t.Helper()
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(message.Encode(msg))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestJournalRotation(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, 4, 0, testLogger{})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	if err := j.Start(); err != nil {
		t.Fatalf("failed to start journal: %v", err)
	}
	for i := 0; i < 9; i++ {
		if !j.Record(plumber.Message{Offset: uint64(i), Text: fmt.Sprintf("msg-%d", i)}) {
			t.Fatalf("record %d dropped", i)
		}
	}
	j.Close()

	// 0..3 went to A, 4..7 to B, 8 back into a truncated A.
	linesA := readLines(t, filepath.Join(dir, FileA))
	linesB := readLines(t, filepath.Join(dir, FileB))
	if len(linesA) != 1 || linesA[0] != "[8] msg-8" {
		t.Errorf("expected A to hold only msg-8, got %v", linesA)
	}
	if len(linesB) != 4 || linesB[0] != "[4] msg-4" || linesB[3] != "[7] msg-7" {
		t.Errorf("expected B to hold msg-4..msg-7, got %v", linesB)
	}

	// Recovery over the rotated pair keeps the most recent capacity
	// messages: B (older leading offset) replays first.
	buf := queue.New(4)
	next, err := Recover(dir, buf, testLogger{})
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if next != 9 {
		t.Errorf("expected next offset 9, got %d", next)
	}
	for want := uint64(5); want <= 8; want++ {
		msg, ok := buf.Pop()
		if !ok {
			t.Fatalf("expected recovered message %d", want)
		}
		if msg.Offset != want {
			t.Errorf("expected offset %d, got %d", want, msg.Offset)
		}
	}
}

func TestJournalDropsWhenHandoffFull(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, 10, 1, testLogger{})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	// Writer not started: the handoff fills immediately.
	if !j.Record(plumber.Message{Offset: 0}) {
		t.Fatal("first record should be accepted")
	}
	if j.Record(plumber.Message{Offset: 1}) {
		t.Fatal("second record should be dropped")
	}
	j.Close()
}

func TestOpenTargetReusesOlderGeneration(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileA), []plumber.Message{{Offset: 0, Text: "old"}, {Offset: 1, Text: "old"}})
	writeFile(t, filepath.Join(dir, FileB), []plumber.Message{{Offset: 5, Text: "new"}})

	j, err := New(dir, 100, 0, testLogger{})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	if err := j.Start(); err != nil {
		t.Fatalf("failed to start journal: %v", err)
	}
	j.Record(plumber.Message{Offset: 10, Text: "fresh"})
	j.Close()

	linesA := readLines(t, filepath.Join(dir, FileA))
	linesB := readLines(t, filepath.Join(dir, FileB))
	if len(linesA) != 1 || linesA[0] != "[a] fresh" {
		t.Errorf("expected truncated A with the fresh record, got %v", linesA)
	}
	if len(linesB) != 1 || linesB[0] != "[5] new" {
		t.Errorf("expected B untouched, got %v", linesB)
	}
}

func TestRecoveryReplaysOlderFileFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileB), []plumber.Message{{Offset: 0, Text: "a"}, {Offset: 1, Text: "b"}, {Offset: 2, Text: "c"}})
	writeFile(t, filepath.Join(dir, FileA), []plumber.Message{{Offset: 3, Text: "d"}, {Offset: 4, Text: "e"}})

	buf := queue.New(10)
	next, err := Recover(dir, buf, testLogger{})
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if next != 5 {
		t.Errorf("expected next offset 5, got %d", next)
	}
	for want := uint64(0); want <= 4; want++ {
		msg, ok := buf.Pop()
		if !ok {
			t.Fatalf("expected message %d", want)
		}
		if msg.Offset != want {
			t.Errorf("expected offset %d, got %d", want, msg.Offset)
		}
	}
}

func TestRecoveryEqualLeadingOffsetsAborts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileA), []plumber.Message{{Offset: 7, Text: "x"}})
	writeFile(t, filepath.Join(dir, FileB), []plumber.Message{{Offset: 7, Text: "y"}})

	if _, err := Recover(dir, queue.New(10), testLogger{}); err == nil {
		t.Fatal("expected recovery to abort on equal leading offsets")
	}
}

func TestRecoverySkipsUnparseableLines(t *testing.T) {
	dir := t.TempDir()
	content := "[0] good\nnot a frame\n[zz] bad hex\n[1] also good\n"
	if err := os.WriteFile(filepath.Join(dir, FileA), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write journal: %v", err)
	}

	buf := queue.New(10)
	next, err := Recover(dir, buf, testLogger{})
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if next != 2 {
		t.Errorf("expected next offset 2, got %d", next)
	}
	if buf.Len() != 2 {
		t.Errorf("expected 2 recovered messages, got %d", buf.Len())
	}
}

func TestRecoveryAllGarbageYieldsEmptyBuffer(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileA), []byte("junk\nmore junk\n"), 0644); err != nil {
		t.Fatalf("failed to write journal: %v", err)
	}

	buf := queue.New(10)
	next, err := Recover(dir, buf, testLogger{})
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if next != 0 || buf.Len() != 0 {
		t.Errorf("expected empty recovery, got next=%d len=%d", next, buf.Len())
	}
}

func TestRecoveryEmptyDir(t *testing.T) {
	buf := queue.New(10)
	next, err := Recover(t.TempDir(), buf, testLogger{})
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if next != 0 || buf.Len() != 0 {
		t.Errorf("expected nothing recovered, got next=%d len=%d", next, buf.Len())
	}
}

func TestRecoveryTruncatesToCapacity(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, 3, 0, testLogger{})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	if err := j.Start(); err != nil {
		t.Fatalf("failed to start journal: %v", err)
	}
	for i := 0; i < 5; i++ {
		j.Record(plumber.Message{Offset: uint64(i), Text: fmt.Sprintf("msg-%d", i)})
	}
	j.Close()

	buf := queue.New(3)
	if _, err := Recover(dir, buf, testLogger{}); err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	for want := uint64(2); want <= 4; want++ {
		msg, ok := buf.Pop()
		if !ok {
			t.Fatalf("expected message %d", want)
		}
		if msg.Offset != want {
			t.Errorf("expected offset %d, got %d", want, msg.Offset)
		}
	}
	if _, ok := buf.Pop(); ok {
		t.Error("expected buffer drained after capacity messages")
	}
}
