// Package tail follows a log file that another goroutine appends to.
//
// There is exactly one writer and one reader. The reader never sees a line
// until its terminating newline has been written; whatever is left over once
// the writer is done is returned by Flush.
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

const readChunk = 32 * 1024

// Follower reads complete lines appended to a file.
type Follower struct {
	file    *os.File
	partial []byte
	buf     []byte
	watcher *fsnotify.Watcher
}

// Open starts following path from its beginning. The file must exist.
func Open(path string) (*Follower, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}

	fl := &Follower{file: f, buf: make([]byte, readChunk)}

	// without inotify Wait degrades to a plain sleep
	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(path); err == nil {
			fl.watcher = w
		} else {
			w.Close()
		}
	}
	return fl, nil
}

// Poll returns the lines completed since the previous call.
func (f *Follower) Poll() ([]string, error) {
	for {
		n, err := f.file.Read(f.buf)
		f.partial = append(f.partial, f.buf[:n]...)
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return f.split(), fmt.Errorf("reading log: %w", err)
		}
	}
	return f.split(), nil
}

// Flush returns the remaining lines including an unterminated last line.
// Call it only after the writer has finished.
func (f *Follower) Flush() ([]string, error) {
	lines, err := f.Poll()
	if len(f.partial) > 0 {
		lines = append(lines, clean(f.partial))
		f.partial = nil
	}
	return lines, err
}

// Wait blocks until d elapses, the file is written to, or ctx is done.
func (f *Follower) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if f.watcher != nil {
		events, errs = f.watcher.Events, f.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}
}

// Follow runs work on its own goroutine while the caller follows the file,
// passing each batch of new lines (possibly none) to onLines every interval
// or sooner when the file is written. Once work has returned, the rest of
// the file is flushed to onLines and work's error is returned. When ctx is
// done, Follow still waits for work before returning.
func (f *Follower) Follow(ctx context.Context, interval time.Duration, work func() error, onLines func([]string)) error {
	done := make(chan error, 1)
	go func() {
		done <- work()
	}()

	for {
		// read errors leave the lines read so far; work's error decides
		lines, _ := f.Poll()
		onLines(lines)

		select {
		case err := <-done:
			lines, _ := f.Flush()
			onLines(lines)
			return err
		default:
		}

		if f.Wait(ctx, interval) != nil {
			err := <-done
			lines, _ := f.Flush()
			onLines(lines)
			return err
		}
	}
}

// Close releases the file and the watcher.
func (f *Follower) Close() error {
	if f.watcher != nil {
		f.watcher.Close()
	}
	return f.file.Close()
}

func (f *Follower) split() []string {
	var lines []string
	for {
		i := bytes.IndexByte(f.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, clean(f.partial[:i]))
		f.partial = f.partial[i+1:]
	}
	// keep the backing array from growing without bound
	if len(f.partial) == 0 {
		f.partial = f.partial[:0:0]
	}
	return lines
}

// clean drops carriage returns. A line redrawn in place with \r keeps only
// its final rendering.
func clean(b []byte) string {
	b = bytes.TrimRight(b, "\r")
	if i := bytes.LastIndexByte(b, '\r'); i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}
