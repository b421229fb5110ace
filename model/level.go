package model

import (
	"strings"

	"github.com/yadunandan004/dblogger/logerr"
)

type LogLevel int

const (
	Trace   LogLevel = 0
	Debug   LogLevel = 1
	Info    LogLevel = 2
	Warning LogLevel = 3
	Error   LogLevel = 4
	Fatal   LogLevel = 5
	Unknown LogLevel = -1
)

var levelNames = map[LogLevel]string{
	Trace:   "TRACE",
	Debug:   "DEBUG",
	Info:    "INFO",
	Warning: "WARNING",
	Error:   "ERROR",
	Fatal:   "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func (l LogLevel) Valid() bool {
	return l >= Trace && l <= Fatal
}

// ParseLevel accepts level names case-insensitively; WARN is an alias of WARNING.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return Trace, nil
	case "DEBUG":
		return Debug, nil
	case "INFO":
		return Info, nil
	case "WARNING", "WARN":
		return Warning, nil
	case "ERROR":
		return Error, nil
	case "FATAL":
		return Fatal, nil
	}
	return Unknown, logerr.Errorf(logerr.KindInvalidArgument, "parse_level", "unknown log level %q", s)
}

func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
