package logger

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func TestSyncLoggerWritesFormattedLines(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 10, 11, 12, 345678000, time.Local)

	lg, err := New(Config{Level: LevelDebug, Dir: dir, Suffix: ".log", Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if lg.Sink().Async() {
		t.Error("QueueSize 0 should give a synchronous sink")
	}

	lg.Infof("Port:%d", 3000)
	lg.Errorf("RequestLine Error")
	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2024_03_09.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "2024-03-09 10:11:12.345678 [info] : Port:3000\n" +
		"2024-03-09 10:11:12.345678 [error]: RequestLine Error\n"
	if string(data) != want {
		t.Errorf("Unexpected log content:\n%q\nwant\n%q", data, want)
	}
}

func TestLevelThreshold(t *testing.T) {
	var out bytes.Buffer
	lg := NewWriter(&out, LevelWarn)

	lg.Debugf("debug")
	lg.Infof("info")
	lg.Warnf("warn")
	lg.Errorf("error")

	got := out.String()
	if strings.Contains(got, "debug") || strings.Contains(got, "[info]") {
		t.Errorf("Lines below threshold leaked: %q", got)
	}
	if !strings.Contains(got, "[warn] : warn") || !strings.Contains(got, "[error]: error") {
		t.Errorf("Missing lines at or above threshold: %q", got)
	}
	if lg.Level() != LevelWarn {
		t.Errorf("Expected level %d, got %d", LevelWarn, lg.Level())
	}
}

func TestFieldsAreSorted(t *testing.T) {
	var out bytes.Buffer
	lg := NewWriter(&out, LevelInfo)
	lg.WithField("fd", 7).WithField("addr", "127.0.0.1").Info("Client in")

	if !strings.Contains(out.String(), "Client in addr=127.0.0.1 fd=7\n") {
		t.Errorf("Unexpected field rendering: %q", out.String())
	}
}

func TestAsyncLoggerNeverDrops(t *testing.T) {
	dir := t.TempDir()
	lg, err := New(Config{Level: LevelInfo, Dir: dir, QueueSize: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !lg.Sink().Async() {
		t.Fatal("QueueSize > 0 should give an async sink")
	}
	name := lg.Sink().Name()

	const producers, perProducer = 8, 250
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				lg.Infof("producer %d line %d", p, i)
			}
		}(p)
	}
	wg.Wait()

	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := countLines(t, name); n != producers*perProducer {
		t.Errorf("Expected %d lines, got %d", producers*perProducer, n)
	}
}

func TestRotationByLineCount(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local)

	lg, err := New(Config{Level: LevelInfo, Dir: dir, MaxLines: 3, Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 7; i++ {
		lg.Infof("line %d", i)
	}
	lg.Close()

	expected := map[string]int{
		"2024_01_02.log":   3,
		"2024_01_02-1.log": 3,
		"2024_01_02-2.log": 1,
	}
	for name, lines := range expected {
		if got := countLines(t, filepath.Join(dir, name)); got != lines {
			t.Errorf("%s: expected %d lines, got %d", name, lines, got)
		}
	}
}

func TestRotationByDay(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	now := time.Date(2024, 5, 31, 23, 59, 59, 0, time.Local)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	lg, err := New(Config{Level: LevelInfo, Dir: dir, Clock: clock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Infof("before midnight")

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()
	lg.Infof("after midnight")
	lg.Close()

	for _, name := range []string{"2024_05_31.log", "2024_06_01.log"} {
		if got := countLines(t, filepath.Join(dir, name)); got != 1 {
			t.Errorf("%s: expected 1 line, got %d", name, got)
		}
	}
}

func TestCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "log")
	lg, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("New should create %s: %v", dir, err)
	}
	defer lg.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Log dir not created: %v", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	lg, err := New(Config{Dir: t.TempDir(), QueueSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	lg.Close()

	if _, err := lg.Sink().Write([]byte("late\n")); err != ErrSinkClosed {
		t.Errorf("Expected ErrSinkClosed, got %v", err)
	}
}

func TestSyncLoggerWritesThrough(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.Local)

	lg, err := New(Config{Level: LevelInfo, Dir: dir, Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer lg.Close()

	lg.Infof("hello")

	// no Flush or Close: the line must already be on disk
	data, err := os.ReadFile(filepath.Join(dir, "2024_07_01.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.HasSuffix(string(data), "[info] : hello\n") {
		t.Errorf("Expected the line in the file before Close, got %q", data)
	}
}

func TestFailedRotationClosesSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.Local)

	sink, err := openSink(dir, ".log", 2, 0, func() time.Time { return now })
	if err != nil {
		t.Fatalf("openSink: %v", err)
	}
	defer sink.Close()

	for i := 0; i < 2; i++ {
		if _, err := sink.Write([]byte("line\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	// a plain file in place of the directory makes the next open fail
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := sink.Write([]byte("rotated\n")); err == nil {
		t.Fatal("Expected the rotation error to surface")
	}
	if _, err := sink.Write([]byte("after\n")); err != ErrSinkClosed {
		t.Errorf("Expected ErrSinkClosed after a failed rotation, got %v", err)
	}
	if name := sink.Name(); name != "" {
		t.Errorf("Expected no open file, got %s", name)
	}
}

func TestQueueBehaviour(t *testing.T) {
	q := NewQueue(2)

	if !q.TryPush("a") || !q.TryPush("b") {
		t.Fatal("TryPush should succeed below capacity")
	}
	if !q.Full() {
		t.Error("Queue should report full at capacity")
	}
	if q.TryPush("c") {
		t.Error("TryPush should fail when full")
	}

	done := make(chan bool)
	go func() { done <- q.Push("c") }()

	if line, ok := q.Pop(); !ok || line != "a" {
		t.Errorf("Expected a, got %q %v", line, ok)
	}
	if !<-done {
		t.Error("Blocking Push should succeed once room frees up")
	}

	q.Close()
	var rest []string
	for {
		line, ok := q.Pop()
		if !ok {
			break
		}
		rest = append(rest, line)
	}
	if fmt.Sprint(rest) != "[b c]" {
		t.Errorf("Expected queued lines to drain after close, got %v", rest)
	}
	if q.TryPush("d") || q.Push("d") {
		t.Error("Push after close should fail")
	}
}
