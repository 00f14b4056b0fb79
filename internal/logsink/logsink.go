// Package logsink decouples log output from the goroutine running a batch.
package logsink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink is a logrus hook that queues formatted entries. Fire never blocks on
// the writer; Drain writes queued entries out in order.
type Sink struct {
	mu        sync.Mutex
	queue     [][]byte
	notify    chan struct{}
	out       io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

// New creates a Sink writing to out with the given formatter. A nil formatter
// means logrus.TextFormatter.
func New(out io.Writer, formatter logrus.Formatter) *Sink {
	if formatter == nil {
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	return &Sink{
		notify:    make(chan struct{}, 1),
		out:       out,
		formatter: formatter,
		levels:    logrus.AllLevels,
	}
}

// Attach installs the sink on logger and silences the logger's own output.
func (s *Sink) Attach(logger *logrus.Logger) {
	logger.SetOutput(io.Discard)
	logger.AddHook(s)
}

// Levels implements logrus.Hook.
func (s *Sink) Levels() []logrus.Level {
	return s.levels
}

// Fire implements logrus.Hook.
func (s *Sink) Fire(entry *logrus.Entry) error {
	line, err := s.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}
	// The formatter may reuse its buffer.
	buf := make([]byte, len(line))
	copy(buf, line)

	s.mu.Lock()
	s.queue = append(s.queue, buf)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Drain writes queued entries until ctx is done, then flushes what is left.
func (s *Sink) Drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return s.Flush()
		case <-s.notify:
			if err := s.Flush(); err != nil {
				return err
			}
		}
	}
}

// Flush writes every queued entry.
func (s *Sink) Flush() error {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, line := range pending {
		if _, err := s.out.Write(line); err != nil {
			return fmt.Errorf("failed to write log entry: %w", err)
		}
	}
	return nil
}
