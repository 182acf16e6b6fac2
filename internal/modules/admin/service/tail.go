package service

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Tailer follows an append-only file from its current end.
type Tailer struct {
	path string
	poll time.Duration
}

func NewTailer(path string, poll time.Duration) *Tailer {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Tailer{path: path, poll: poll}
}

// Follow calls fn for every complete line appended after the call. It only
// reads, so a slow consumer never holds up the writer. It returns nil when
// ctx is done and fn's error when fn fails.
func (t *Tailer) Follow(ctx context.Context, fn func(line string) error) error {
	f, err := os.Open(t.path)
	if err != nil {
		return errors.Wrap(err, "open log")
	}
	defer f.Close()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "seek log")
	}

	r := bufio.NewReader(f)
	var pending strings.Builder
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	for {
		chunk, err := r.ReadString('\n')
		pending.WriteString(chunk)
		if err == nil {
			line := strings.TrimRight(pending.String(), "\r\n")
			pending.Reset()
			if err := fn(line); err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return errors.Wrap(err, "read log")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
