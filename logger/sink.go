package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MaxLines is the default number of lines per file before a same-day rotation
const MaxLines = 50000

const dateLayout = "2006_01_02"

// ErrSinkClosed is returned by writes after Close
var ErrSinkClosed = errors.New("logger: sink closed")

// Sink is the file side of the logger. Lines either go through the
// bounded queue to the writer goroutine or, in synchronous mode and
// whenever the queue is full, straight to the file. Both paths share mu.
type Sink struct {
	mu        sync.Mutex
	dir       string
	suffix    string
	maxLines  int
	file      *os.File
	w         *bufio.Writer
	day       string
	lineCount int
	now       func() time.Time

	queue *Queue
	done  chan struct{}
}

func openSink(dir, suffix string, maxLines, queueSize int, now func() time.Time) (*Sink, error) {
	if maxLines <= 0 {
		maxLines = MaxLines
	}
	if now == nil {
		now = time.Now
	}
	s := &Sink{
		dir:      dir,
		suffix:   suffix,
		maxLines: maxLines,
		now:      now,
	}

	s.day = now().Format(dateLayout)
	if err := s.open(filepath.Join(dir, s.day+suffix)); err != nil {
		return nil, err
	}

	if queueSize > 0 {
		s.queue = NewQueue(queueSize)
		s.done = make(chan struct{})
		go s.drain()
	}
	return s, nil
}

func (s *Sink) open(name string) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		if mkErr := os.MkdirAll(s.dir, 0o777); mkErr != nil {
			return fmt.Errorf("create log dir %s: %w", s.dir, mkErr)
		}
		f, err = os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", name, err)
		}
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	return nil
}

// Async reports whether lines go through the queue
func (s *Sink) Async() bool {
	return s.queue != nil
}

// Name returns the path of the file currently written to
func (s *Sink) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

// Write takes one formatted line. It copies p, so callers may reuse it.
func (s *Sink) Write(p []byte) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return 0, ErrSinkClosed
	}

	if err := s.rotate(now); err != nil {
		return 0, err
	}
	s.lineCount++

	line := string(p)
	if s.queue != nil && s.queue.TryPush(line) {
		return len(p), nil
	}
	// synchronous mode, or the queue is momentarily full
	n, err := s.w.WriteString(line)
	if err != nil {
		return n, err
	}
	return n, s.w.Flush()
}

// rotate swaps files when the day changed or the line counter crossed
// a multiple of maxLines. Callers hold mu.
func (s *Sink) rotate(now time.Time) error {
	day := now.Format(dateLayout)
	if day == s.day && (s.lineCount == 0 || s.lineCount%s.maxLines != 0) {
		return nil
	}

	var name string
	if day != s.day {
		name = filepath.Join(s.dir, day+s.suffix)
		s.day = day
		s.lineCount = 0
	} else {
		name = filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", day, s.lineCount/s.maxLines, s.suffix))
	}

	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	if err := s.open(name); err != nil {
		// later writes fail with ErrSinkClosed
		s.file = nil
		s.w = nil
		return errors.Join(flushErr, closeErr, err)
	}
	return errors.Join(flushErr, closeErr)
}

func (s *Sink) drain() {
	defer close(s.done)
	for {
		line, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.mu.Lock()
		if s.w != nil {
			s.w.WriteString(line)
			if s.queue.Len() == 0 {
				s.w.Flush()
			}
		}
		s.mu.Unlock()
	}
}

// Flush pushes buffered bytes to the file
func (s *Sink) Flush() error {
	if s.queue != nil {
		s.queue.Flush()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	return s.w.Flush()
}

// Close drains the queue, stops the writer goroutine and closes the file
func (s *Sink) Close() error {
	if s.queue != nil {
		s.queue.Close()
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	s.file = nil
	s.w = nil
	return errors.Join(flushErr, closeErr)
}
