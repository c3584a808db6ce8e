package log

import (
	"runtime/debug"
	"time"
)

// Field is a single structured key/value attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func Str(key, value string) Field           { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field   { return Field{Key: key, Value: value} }
func Float64(key string, v float64) Field   { return Field{Key: key, Value: v} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }
func Dur(key string, d time.Duration) Field { return Field{Key: key, Value: d} }
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err attaches an error under the "error" key. A nil error yields an empty value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: ErrorKey, Value: nil}
	}
	return Field{Key: ErrorKey, Value: err}
}

// Component tags an entry with the emitting component name.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Stack captures the current goroutine stack.
func Stack() Field { return Field{Key: StackKey, Value: string(debug.Stack())} }
