package log

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ScanProgress reports terminal progress for a batch scan over many
// symbols: a progress bar, a count and an ETA, mirroring how a long
// pipeline step reports progress elsewhere in this codebase.
type ScanProgress struct {
	mu        sync.Mutex
	total     int
	current   int
	startTime time.Time
	quiet     bool
}

// NewScanProgress starts a progress indicator for a scan over total
// symbols. When quiet is true, Update/Finish/Fail are silent no-ops
// except for the underlying structured log line.
func NewScanProgress(total int, quiet bool) *ScanProgress {
	return &ScanProgress{total: total, startTime: time.Now(), quiet: quiet}
}

// Update advances progress to the given symbol index (1-based) and name.
func (p *ScanProgress) Update(current int, symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	if !p.quiet {
		p.print(symbol)
	}
}

// Finish completes the progress indicator.
func (p *ScanProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	duration := time.Since(p.startTime)
	if !p.quiet {
		fmt.Printf("\rscan complete (%d symbols, %v)\n", p.total, duration.Round(time.Millisecond))
	}
	log.Info().Int("symbols", p.total).Dur("duration", duration).Msg("batch scan completed")
}

// Fail reports a fatal scan failure.
func (p *ScanProgress) Fail(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.quiet {
		fmt.Printf("\rscan failed: %s\n", reason)
	}
	log.Error().Str("reason", reason).Int("completed", p.current).Int("total", p.total).Msg("batch scan failed")
}

func (p *ScanProgress) print(symbol string) {
	var out strings.Builder
	out.WriteString("\r\033[K")

	if p.total > 0 {
		percentage := float64(p.current) / float64(p.total) * 100
		barWidth := 20
		filled := int(float64(barWidth) * float64(p.current) / float64(p.total))
		out.WriteString("[")
		for i := 0; i < barWidth; i++ {
			if i < filled {
				out.WriteString("#")
			} else {
				out.WriteString("-")
			}
		}
		out.WriteString(fmt.Sprintf("] %d/%d (%.1f%%) %s", p.current, p.total, percentage, symbol))

		if p.current > 0 {
			elapsed := time.Since(p.startTime)
			rate := float64(p.current) / elapsed.Seconds()
			remaining := p.total - p.current
			eta := time.Duration(float64(remaining)/rate) * time.Second
			out.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Second)))
		}
	}

	fmt.Print(out.String())
}
