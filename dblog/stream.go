package dblog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/yadunandan004/dblogger/model"
)

// Stream accumulates one message piece by piece and logs it on Commit.
// The call site is captured when the stream is created.
//
//	s := l.InfoStream()
//	defer s.Commit()
//	s.Print("loaded ", n, " rows")
type Stream struct {
	l        *Logger
	level    model.LogLevel
	enabled  bool
	function string
	file     string
	line     int
	threadID string

	mu   sync.Mutex
	buf  strings.Builder
	once sync.Once
}

func (l *Logger) Stream(level model.LogLevel) *Stream { return l.newStream(level, 2) }

func (l *Logger) TraceStream() *Stream   { return l.newStream(model.Trace, 2) }
func (l *Logger) DebugStream() *Stream   { return l.newStream(model.Debug, 2) }
func (l *Logger) InfoStream() *Stream    { return l.newStream(model.Info, 2) }
func (l *Logger) WarningStream() *Stream { return l.newStream(model.Warning, 2) }
func (l *Logger) ErrorStream() *Stream   { return l.newStream(model.Error, 2) }
func (l *Logger) FatalStream() *Stream   { return l.newStream(model.Fatal, 2) }

func (l *Logger) newStream(level model.LogLevel, skip int) *Stream {
	s := &Stream{l: l, level: level, enabled: l.Enabled(level)}
	if s.enabled {
		s.function, s.file, s.line = caller(skip)
		s.threadID = model.CurrentThreadID()
	}
	return s
}

// Print appends the operands with no separator and returns the stream.
func (s *Stream) Print(args ...any) *Stream {
	if !s.enabled {
		return s
	}
	s.mu.Lock()
	for _, a := range args {
		fmt.Fprint(&s.buf, a)
	}
	s.mu.Unlock()
	return s
}

func (s *Stream) Printf(format string, args ...any) *Stream {
	if !s.enabled {
		return s
	}
	s.mu.Lock()
	fmt.Fprintf(&s.buf, format, args...)
	s.mu.Unlock()
	return s
}

func (s *Stream) Write(p []byte) (int, error) {
	if s.enabled {
		s.mu.Lock()
		s.buf.Write(p)
		s.mu.Unlock()
	}
	return len(p), nil
}

func (s *Stream) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Commit logs the accumulated message. Only the first call has an effect.
func (s *Stream) Commit() {
	s.once.Do(func() {
		if !s.enabled {
			return
		}
		s.l.LogAdd(s.level, s.String(), s.function, s.file, s.line, s.threadID)
	})
}

// Close commits the stream so it can be used wherever an io.Closer is expected.
func (s *Stream) Close() error {
	s.Commit()
	return nil
}
