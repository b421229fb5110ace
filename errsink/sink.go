package errsink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yadunandan004/dblogger/model"
)

const (
	DefaultPath     = "error_log.txt"
	DefaultMaxBytes = 10 << 20
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Reporter is what the logging pipeline needs from a failure channel.
type Reporter interface {
	Error(msg string)
	Warning(msg string)
}

// Sink appends failure lines to a local file and never touches a database.
type Sink struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	size     int64
	// closed sinks only echo to zap
	closed  bool
	log     *zap.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

var _ Reporter = (*Sink)(nil)

type Option func(*Sink)

func WithZap(l *zap.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// New prepares a sink; the file is opened lazily on the first line.
func New(path string, maxBytes int64, opts ...Option) *Sink {
	if path == "" {
		path = DefaultPath
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	s := &Sink{
		path:     path,
		maxBytes: maxBytes,
		log:      zap.NewNop(),
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) Error(msg string) {
	s.write(SeverityError, msg)
}

func (s *Sink) Warning(msg string) {
	s.write(SeverityWarning, msg)
}

func (s *Sink) write(sev Severity, msg string) {
	msg = strings.ReplaceAll(strings.TrimRight(msg, "\n"), "\n", " ")
	line := fmt.Sprintf("%s [%s] %s\n", model.FormatTimestamp(s.now()), sev, msg)

	var err error
	s.mu.Lock()
	if !s.closed {
		err = s.append(line)
	}
	s.mu.Unlock()

	if s.limiter.Allow() {
		fields := []zap.Field{zap.String("severity", string(sev)), zap.String("sink", s.path)}
		if err != nil {
			fields = append(fields, zap.NamedError("sink_error", err))
		}
		s.log.Warn(msg, fields...)
	}
}

func (s *Sink) append(line string) error {
	if err := s.open(); err != nil {
		return err
	}
	if s.size+int64(len(line)) > s.maxBytes && s.size > 0 {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	n, err := s.file.WriteString(line)
	s.size += int64(n)
	return err
}

func (s *Sink) open() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.file, s.size = f, info.Size()
	return nil
}

// rotate deletes the file and starts a fresh one.
func (s *Sink) rotate() error {
	s.file.Close()
	s.file = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.open()
}

// Close releases the file. Later reports are echoed to zap but never
// reopen or recreate the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Discard drops every report; useful when a logger must not create files.
type Discard struct{}

func (Discard) Error(string)   {}
func (Discard) Warning(string) {}
