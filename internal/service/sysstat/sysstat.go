// Package sysstat samples host utilization with gopsutil.
package sysstat

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
	"github.com/eigenein/myiot/pkg/log"
)

// Options configures the sampler.
type Options struct {
	// Host names the channels. Defaults to the reported hostname.
	Host     string
	Interval time.Duration
	// DiskPath is the mount point whose usage is reported. Defaults to "/".
	DiskPath string
	Logger   log.Logger
}

// Stats is one utilization snapshot in percent.
type Stats struct {
	CPU    float64
	Memory float64
	Disk   float64
}

// Sampler yields system:{host}:{cpu,memory,disk}_percent every Interval.
type Sampler struct {
	opts    Options
	logger  log.Logger
	collect func(ctx context.Context) (Stats, error)
}

func New(opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.DiskPath == "" {
		opts.DiskPath = "/"
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	s := &Sampler{opts: opts}
	s.collect = s.sample
	s.logger = opts.Logger.With(log.Str("service", s.String()))
	return s
}

func (s *Sampler) String() string {
	return fmt.Sprintf("SysStat(host=%q, interval=%s)", s.opts.Host, s.opts.Interval)
}

func (s *Sampler) Events(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		hostname, err := s.hostname(ctx)
		if err != nil {
			yield(event.Event{}, err)
			return
		}
		for {
			stats, err := s.collect(ctx)
			if err != nil {
				if ctx.Err() == nil {
					yield(event.Event{}, err)
				}
				return
			}
			prefix := "system:" + hostname + ":"
			for _, e := range []event.Event{
				event.New(prefix+"cpu_percent", stats.CPU, event.Percent, event.WithTitle(hostname+" CPU")),
				event.New(prefix+"memory_percent", stats.Memory, event.Percent, event.WithTitle(hostname+" Memory")),
				event.New(prefix+"disk_percent", stats.Disk, event.Percent, event.WithTitle(hostname+" Disk")),
			} {
				if !yield(e, nil) {
					return
				}
			}
			if service.Sleep(ctx, s.opts.Interval) != nil {
				return
			}
		}
	}
}

func (s *Sampler) hostname(ctx context.Context) (string, error) {
	if s.opts.Host != "" {
		return s.opts.Host, nil
	}
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("host info: %w", err)
	}
	return info.Hostname, nil
}

func (s *Sampler) sample(ctx context.Context) (Stats, error) {
	var stats Stats
	// a zero interval compares against the previous call
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return stats, fmt.Errorf("cpu: %w", err)
	}
	if len(percentages) > 0 {
		stats.CPU = percentages[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("memory: %w", err)
	}
	if vm.Total > 0 {
		// Total-Available excludes page cache from "used"
		stats.Memory = float64(vm.Total-vm.Available) / float64(vm.Total) * 100
	}
	du, err := disk.UsageWithContext(ctx, s.opts.DiskPath)
	if err != nil {
		return stats, fmt.Errorf("disk %s: %w", s.opts.DiskPath, err)
	}
	stats.Disk = du.UsedPercent
	s.logger.Debug("sampled", log.Float64("cpu", stats.CPU), log.Float64("memory", stats.Memory), log.Float64("disk", stats.Disk))
	return stats, nil
}

func (s *Sampler) Close() error { return nil }
