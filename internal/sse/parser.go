package sse

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/eigenein/myiot/pkg/log"
)

// Record is one dispatched SSE event.
type Record struct {
	Name string
	Data string
	ID   string
}

// Parser reads records from a stream. It is not safe for concurrent use.
type Parser struct {
	r      *bufio.Reader
	logger log.Logger
}

// NewParser wraps r. A nil logger discards diagnostics.
func NewParser(r io.Reader, logger log.Logger) *Parser {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Parser{r: bufio.NewReader(r), logger: logger}
}

// Next returns the next complete record. It returns io.EOF once the stream
// ends; any partially read record is dropped at that point.
func (p *Parser) Next() (Record, error) {
	var (
		rec     Record
		data    []string
		started bool
	)
	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if started || line != "" {
					p.logger.Debug("sse: discarding partial record at end of stream")
				}
				return Record{}, io.EOF
			}
			return Record{}, err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if !started {
				continue
			}
			rec.Data = strings.Join(data, "\n")
			return rec, nil
		}
		if strings.HasPrefix(line, ":") {
			p.logger.Debug("sse: comment", log.Str("comment", strings.TrimSpace(line[1:])))
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			rec.Name = value
		case "data":
			data = append(data, value)
		case "id":
			rec.ID = value
		default:
			p.logger.Warn("sse: unknown field", log.Str("field", field), log.Str("value", value))
			continue
		}
		started = true
	}
}

// Records yields records from r until the stream ends or ctx is done. A read
// error other than io.EOF is yielded once and ends the sequence.
func Records(ctx context.Context, r io.Reader, logger log.Logger) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		p := NewParser(r, logger)
		for {
			if err := ctx.Err(); err != nil {
				return
			}
			rec, err := p.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					yield(Record{}, err)
				}
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
