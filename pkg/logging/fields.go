package logging

import "time"

// Field is one key/value pair attached to a log entry
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{key, value} }

func Int(key string, value int) Field { return Field{key, value} }

func Bool(key string, value bool) Field { return Field{key, value} }

// Duration renders d in time.Duration notation ("1.5s")
func Duration(key string, d time.Duration) Field { return Field{key, d.String()} }

// Error records err under "error"; a nil err records null
func Error(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err.Error()}
}

// Engine fields. Keys are shared across packages so log queries can join
// on them.

func Component(name string) Field { return String("component", name) }
func NodeKey(key string) Field    { return String("node", key) }
func EdgeKey(key string) Field    { return String("edge", key) }
func Event(name string) Field     { return String("event", name) }
func Source(url string) Field     { return String("source", url) }
func Count(n int) Field           { return Int("count", n) }

func Latency(d time.Duration) Field { return Duration("latency", d) }
