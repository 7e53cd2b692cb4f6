package memory

import (
	"fmt"
	"runtime"
	"time"
)

// callerSite formats the allocation site two frames up from the Pool
// method that calls it, for debug leak attribution.
func callerSite() string {
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s:%d (%s)", file, line, name)
}

// LeakEntry describes one block that has outlived the configured age
// threshold without being freed.
type LeakEntry struct {
	Site      string
	Bytes     int
	Allocated time.Time
}

// LeakReport summarizes currently-live allocations older than a threshold.
type LeakReport struct {
	ActiveCount int
	Entries     []LeakEntry
	TotalBytes  int
}

// LeakReport inspects every live block and returns those older than
// minAge. TrackLeaks must have been enabled at pool creation; otherwise the
// report is always empty.
func (p *Pool) LeakReport(minAge time.Duration) LeakReport {
	p.lock()
	defer p.unlock()

	report := LeakReport{ActiveCount: len(p.leaks)}
	if !p.cfg.TrackLeaks {
		return report
	}

	now := time.Now()
	for idx := range p.leaks {
		b := p.blocks[idx]
		if now.Sub(b.allocated) < minAge {
			continue
		}
		report.Entries = append(report.Entries, LeakEntry{
			Site:      b.site,
			Bytes:     b.size,
			Allocated: b.allocated,
		})
		report.TotalBytes += b.size
	}
	return report
}
