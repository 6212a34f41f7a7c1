package logging

import "strings"

// Level orders log severities; a logger drops entries below its level
type Level int32

const (
	// DebugLevel traces engine internals: graph events, rebuilds, drags
	DebugLevel Level = iota
	InfoLevel
	// WarnLevel marks recoverable problems such as skipped malformed input
	WarnLevel
	// ErrorLevel marks failures surfaced to the caller
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel reads a level name in any case. "warning" is accepted for
// WarnLevel; anything unrecognized is InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	}
	return InfoLevel
}
