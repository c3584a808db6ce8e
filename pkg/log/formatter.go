package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TextFormatter renders entries as a single human-readable line, followed by
// the stack trace when one is attached.
type TextFormatter struct {
	// TimeFormat defaults to time.RFC3339 with milliseconds.
	TimeFormat string
	// ShowCaller appends file:line of the call site.
	ShowCaller bool
}

func (f *TextFormatter) Format(e *Entry) ([]byte, error) {
	tf := f.TimeFormat
	if tf == "" {
		tf = "2006-01-02T15:04:05.000Z07:00"
	}
	var buf bytes.Buffer
	buf.WriteString(e.Timestamp.Format(tf))
	fmt.Fprintf(&buf, " %-5s %s", e.Level.String(), e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if k == StackKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%s", k, textValue(e.Fields[k]))
	}
	if f.ShowCaller && e.Caller != "" {
		fmt.Fprintf(&buf, " caller=%s", e.Caller)
	}
	buf.WriteByte('\n')
	if st, ok := e.Fields[StackKey].(string); ok && st != "" {
		buf.WriteString(st)
		if st[len(st)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

func textValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		for _, r := range t {
			if r == ' ' || r == '"' || r == '=' {
				return fmt.Sprintf("%q", t)
			}
		}
		if t == "" {
			return `""`
		}
		return t
	case time.Duration:
		return t.String()
	case error:
		return fmt.Sprintf("%q", t.Error())
	default:
		return fmt.Sprintf("%v", t)
	}
}

// JSONFormatter renders entries as one JSON object per line.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(e *Entry) ([]byte, error) {
	m := make(map[string]interface{}, len(e.Fields)+4)
	for k, v := range e.Fields {
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		m[k] = v
	}
	m["time"] = e.Timestamp.Format(time.RFC3339Nano)
	m["level"] = e.Level.String()
	m["msg"] = e.Message
	if e.Caller != "" {
		m["caller"] = e.Caller
	}
	b, err := json.Marshal(m)
	if err != nil {
		// fall back to stringified fields rather than losing the entry
		for k, v := range m {
			m[k] = fmt.Sprintf("%v", v)
		}
		if b, err = json.Marshal(m); err != nil {
			return nil, err
		}
	}
	return append(b, '\n'), nil
}
