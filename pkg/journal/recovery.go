package journal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	plumber "github.com/MostlyMax/plumber-queue"
	"github.com/MostlyMax/plumber-queue/pkg/message"
)

// maxLineBytes bounds a single journal line during replay.
const maxLineBytes = 1 << 20

// ErrCorrupted marks a journal whose two files claim the same leading
// offset. The files cannot be ordered, so recovery refuses to guess.
var ErrCorrupted = errors.New("journal files have equal leading offsets")

// Recover replays any existing journal files into buf, older file
// first, so that the buffer ends up holding the most recent admissions
// in FIFO order. Unparseable lines are skipped. It returns the offset
// the next admission should be assigned, i.e. one past the highest
// offset seen, or 0 when nothing was recovered.
func Recover(dir string, buf plumber.Buffer, logger plumber.Logger) (uint64, error) {
	type generation struct {
		path  string
		first uint64
		ok    bool
	}

	var gens []generation
	for _, name := range []string{FileA, FileB} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		first, ok := firstOffset(path)
		gens = append(gens, generation{path: path, first: first, ok: ok})
	}
	if len(gens) == 0 {
		return 0, nil
	}

	if len(gens) == 2 {
		a, b := gens[0], gens[1]
		switch {
		case a.ok && b.ok && a.first == b.first:
			return 0, fmt.Errorf("%w: %#x", ErrCorrupted, a.first)
		case a.ok && b.ok && b.first < a.first:
			gens[0], gens[1] = b, a
		case !a.ok && b.ok:
			// A file with no readable leading offset contributes
			// nothing orderable; replay it first so the intact
			// generation survives any eviction.
		case a.ok && !b.ok:
			gens[0], gens[1] = b, a
		}
	}

	var next uint64
	replayed := 0
	for _, gen := range gens {
		n, high, err := replayFile(gen.path, buf)
		if err != nil {
			return 0, err
		}
		replayed += n
		if n > 0 && high+1 > next {
			next = high + 1
		}
	}
	logger.Info("journal recovery complete", "messages", replayed, "next_offset", next)
	return next, nil
}

// replayFile pushes every parseable line of one journal file into buf
// using the standard overwrite-on-full rule. It returns the number of
// messages replayed and the highest offset among them.
func replayFile(path string, buf plumber.Buffer) (int, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open journal file for recovery: %w", err)
	}
	defer f.Close()

	var (
		count int
		high  uint64
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		msg, err := message.Parse(scanner.Text())
		if err != nil {
			continue
		}
		buf.Push(msg)
		count++
		if msg.Offset > high {
			high = msg.Offset
		}
	}
	if err := scanner.Err(); err != nil {
		return count, high, fmt.Errorf("failed to read journal file %s: %w", path, err)
	}
	return count, high, nil
}
