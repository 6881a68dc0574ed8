package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	plumber "github.com/MostlyMax/plumber-queue"
	"github.com/MostlyMax/plumber-queue/pkg/message"
)

const (
	// FileA and FileB are the two rotating journal generations. At any
	// moment one of them is the write target and the other is the
	// sealed snapshot of the previous generation.
	FileA = "producer.A"
	FileB = "producer.B"

	// DefaultHandoffSize bounds the producer-to-journal channel. A full
	// channel drops records rather than back-pressuring admission.
	DefaultHandoffSize = 10_000
)

// Journal mirrors every admitted message to an append-only log so the
// queue can be rebuilt after a crash. It alternates between two files,
// sealing the current one and truncating the other once the current
// file holds rotationThreshold messages. Together the two files always
// cover at least the last rotationThreshold admissions.
type Journal struct {
	dir       string
	threshold int
	logger    plumber.Logger

	ch        chan plumber.Message
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	file   *os.File
	writer *bufio.Writer
	active string
	count  int

	encodeBuf []byte
}

// New creates a journal rooted at dir. rotationThreshold should equal
// the queue capacity so a full buffer is always reconstructible.
func New(dir string, rotationThreshold, handoffSize int, logger plumber.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	if rotationThreshold <= 0 {
		rotationThreshold = 1
	}
	if handoffSize <= 0 {
		handoffSize = DefaultHandoffSize
	}
	return &Journal{
		dir:       dir,
		threshold: rotationThreshold,
		logger:    logger,
		ch:        make(chan plumber.Message, handoffSize),
		done:      make(chan struct{}),
	}, nil
}

// Record hands msg to the writer without blocking. It reports false
// when the handoff channel is full and the record was dropped, the
// documented degradation under sustained backpressure.
func (j *Journal) Record(msg plumber.Message) bool {
	select {
	case j.ch <- msg:
		return true
	default:
		return false
	}
}

// Start opens the write target and launches the writer goroutine. It
// must be called after Recover has replayed any existing files.
func (j *Journal) Start() error {
	if err := j.openTarget(); err != nil {
		return err
	}
	j.wg.Add(1)
	go j.writeLoop()
	return nil
}

// openTarget picks the file to truncate and write into. The file whose
// leading offset is older was already replayed first during recovery,
// so overwriting it keeps the newer generation intact. With fewer than
// two complete generations on disk the untouched name is used.
func (j *Journal) openTarget() error {
	offA, okA := firstOffset(filepath.Join(j.dir, FileA))
	offB, okB := firstOffset(filepath.Join(j.dir, FileB))

	name := FileA
	switch {
	case okA && okB:
		if offB < offA {
			name = FileB
		}
	case okA:
		name = FileB
	case okB:
		name = FileA
	}
	return j.open(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (j *Journal) open(name string, flag int) error {
	f, err := os.OpenFile(filepath.Join(j.dir, name), flag, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal file %s: %w", name, err)
	}
	j.file = f
	j.writer = bufio.NewWriter(f)
	j.active = name
	j.count = 0
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case msg := <-j.ch:
			j.append(msg)
		case <-j.done:
			// Drain whatever producers managed to hand off before the
			// shutdown signal, then seal the file.
			for {
				select {
				case msg := <-j.ch:
					j.append(msg)
					continue
				default:
				}
				break
			}
			if err := j.writer.Flush(); err != nil {
				j.logger.Error("journal flush failed", "file", j.active, "error", err)
			}
			if err := j.file.Close(); err != nil {
				j.logger.Error("journal close failed", "file", j.active, "error", err)
			}
			return
		}
	}
}

// append writes one message in wire form. Write errors are logged and
// the journal keeps going; losing records degrades recovery but must
// not take down the broker.
func (j *Journal) append(msg plumber.Message) {
	j.encodeBuf = message.AppendWire(j.encodeBuf[:0], msg)
	if _, err := j.writer.Write(j.encodeBuf); err != nil {
		j.logger.Error("journal write failed", "file", j.active, "error", err)
		return
	}
	if err := j.writer.Flush(); err != nil {
		j.logger.Error("journal flush failed", "file", j.active, "error", err)
		return
	}
	j.count++
	if j.count >= j.threshold {
		j.rotate()
	}
}

func (j *Journal) rotate() {
	if err := j.file.Close(); err != nil {
		j.logger.Error("journal close failed", "file", j.active, "error", err)
	}
	next := FileA
	if j.active == FileA {
		next = FileB
	}
	if err := j.open(next, os.O_WRONLY|os.O_CREATE|os.O_TRUNC); err != nil {
		// Keep appending to the sealed file rather than dropping
		// everything; the next rotation retries the switch.
		j.logger.Error("journal rotation failed", "file", next, "error", err)
		if reopenErr := j.open(j.active, os.O_WRONLY|os.O_CREATE|os.O_APPEND); reopenErr != nil {
			j.logger.Error("journal reopen failed", "file", j.active, "error", reopenErr)
		}
		return
	}
	j.logger.Debug("journal rotated", "file", next)
}

// Close stops the writer and seals the current file. Records handed
// off before Close are written out first.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		close(j.done)
	})
	j.wg.Wait()
	return nil
}

// firstOffset reads the leading wire-form offset of a journal file.
// ok is false when the file is missing, empty or its first line does
// not parse.
func firstOffset(path string) (uint64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	if !scanner.Scan() {
		return 0, false
	}
	msg, err := message.Parse(scanner.Text())
	if err != nil {
		return 0, false
	}
	return msg.Offset, true
}
