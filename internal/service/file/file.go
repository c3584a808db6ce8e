// Package file produces the content of a file as an event.
package file

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
	"github.com/eigenein/myiot/pkg/log"
)

// Options configures a File service.
type Options struct {
	// Name is appended to the "file:" channel prefix.
	Name     string
	Path     string
	Interval time.Duration
	Unit     event.Unit
	Title    string
	// Float parses the trimmed content as a number and multiplies it by Scale.
	Float bool
	Scale float64
	// Logger defaults to a no-op logger.
	Logger log.Logger
}

// File reads Path once per sequence, then sleeps Interval and returns so
// that the runner restarts it.
type File struct {
	opts   Options
	logger log.Logger
}

func New(opts Options) *File {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Float && opts.Scale == 0 {
		opts.Scale = 1
	}
	if opts.Unit == "" {
		opts.Unit = event.Text
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	f := &File{opts: opts}
	f.logger = logger.With(log.Str("service", f.String()))
	return f
}

func (f *File) String() string {
	return fmt.Sprintf("File(path=%q, title=%q)", f.opts.Path, f.opts.Title)
}

func (f *File) Events(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		raw, err := os.ReadFile(f.opts.Path)
		if err != nil {
			f.logger.Error("I/O error", log.Err(err))
		} else {
			value, err := f.parse(string(raw))
			if err != nil {
				yield(event.Event{}, err)
				return
			}
			e := event.New("file:"+f.opts.Name, value, f.opts.Unit, event.WithTitle(f.opts.Title))
			if !yield(e, nil) {
				return
			}
		}
		f.logger.Debug("next reading scheduled", log.Dur("interval", f.opts.Interval))
		_ = service.Sleep(ctx, f.opts.Interval)
	}
}

func (f *File) parse(content string) (any, error) {
	if !f.opts.Float {
		return content, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.opts.Path, err)
	}
	return v * f.opts.Scale, nil
}

func (f *File) Close() error { return nil }
