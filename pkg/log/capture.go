package log

import "sync"

// CaptureOutput keeps formatted entries in memory. Tests use it to assert on
// what a component logged.
type CaptureOutput struct {
	mu      sync.Mutex
	entries []Entry
}

func (c *CaptureOutput) Write(e *Entry, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *e
	cp.Fields = make(Fields, len(e.Fields))
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	c.entries = append(c.entries, cp)
	return nil
}

func (c *CaptureOutput) Close() error { return nil }

// Entries returns a copy of everything written so far.
func (c *CaptureOutput) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Count returns the number of entries at the given level whose message equals msg.
func (c *CaptureOutput) Count(level Level, msg string) int {
	n := 0
	for _, e := range c.Entries() {
		if e.Level == level && e.Message == msg {
			n++
		}
	}
	return n
}

// NewCapture returns a debug-level logger and the output it records to.
func NewCapture() (Logger, *CaptureOutput) {
	out := &CaptureOutput{}
	return NewLogger(WithLevel(DebugLevel), WithFormatter(&TextFormatter{}), WithOutput(out)), out
}
