package logger

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Log levels, lowest first. A logger at level N drops calls below N.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config selects the file layout and the write mode
type Config struct {
	Level     int
	Dir       string
	Suffix    string
	QueueSize int // 0 writes synchronously, >0 enables the async writer
	MaxLines  int
	Clock     func() time.Time
}

// Logger is shared by every worker. Construct it once at startup and
// Close it on the way out.
type Logger struct {
	log  *logrus.Logger
	sink *Sink
}

// New opens the first log file and, in async mode, starts the writer
func New(cfg Config) (*Logger, error) {
	if cfg.Suffix == "" {
		cfg.Suffix = ".log"
	}
	if cfg.Dir == "" {
		cfg.Dir = "./log"
	}
	sink, err := openSink(cfg.Dir, cfg.Suffix, cfg.MaxLines, cfg.QueueSize, cfg.Clock)
	if err != nil {
		return nil, err
	}

	l := &Logger{log: newLogrus(sink), sink: sink}
	if cfg.Clock != nil {
		l.log.SetFormatter(&lineFormatter{clock: cfg.Clock})
	}
	l.SetLevel(cfg.Level)
	return l, nil
}

// NewWriter logs synchronously to w, with no file rotation
func NewWriter(w io.Writer, level int) *Logger {
	l := &Logger{log: newLogrus(w)}
	l.SetLevel(level)
	return l
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWriter(io.Discard, LevelError)
}

func newLogrus(out io.Writer) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(out)
	lg.SetFormatter(&lineFormatter{})
	return lg
}

// SetLevel changes the threshold. Out of range values mean info.
func (l *Logger) SetLevel(level int) {
	switch level {
	case LevelDebug:
		l.log.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		l.log.SetLevel(logrus.WarnLevel)
	case LevelError:
		l.log.SetLevel(logrus.ErrorLevel)
	default:
		l.log.SetLevel(logrus.InfoLevel)
	}
}

// Level returns the current threshold
func (l *Logger) Level() int {
	switch l.log.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return LevelDebug
	case logrus.WarnLevel:
		return LevelWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debugf(format string, args ...any) { l.log.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log.Errorf(format, args...) }

// WithField starts an entry carrying a key=value pair
func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.log.WithField(key, value)
}

// Sink returns the file sink, or nil for writer-backed loggers
func (l *Logger) Sink() *Sink {
	return l.sink
}

// Flush writes out buffered lines
func (l *Logger) Flush() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Flush()
}

// Close drains pending lines and closes the file
func (l *Logger) Close() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// lineFormatter renders "2006-01-02 15:04:05.000000 [info] : message"
type lineFormatter struct {
	clock func() time.Time
}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b := e.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	ts := e.Time
	if f.clock != nil {
		ts = f.clock()
	}
	b.WriteString(ts.Format("2006-01-02 15:04:05.000000 "))
	b.WriteString(levelTitle(e.Level))
	b.WriteString(e.Message)

	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, " %s=%v", k, e.Data[k])
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelTitle(level logrus.Level) string {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "[debug]: "
	case logrus.WarnLevel:
		return "[warn] : "
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "[error]: "
	default:
		return "[info] : "
	}
}
