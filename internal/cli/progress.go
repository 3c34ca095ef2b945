package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// parseProgressReporter draws a single status line on stderr while files are
// indexed. It is a no-op unless stderr is a terminal.
type parseProgressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	label   string
	start   time.Time
	spinner int
	lastLen int
	count   int
}

func newParseProgressReporter(label string, asJSON bool) *parseProgressReporter {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0 && !asJSON
	return &parseProgressReporter{
		out:     os.Stderr,
		enabled: enabled,
		label:   label,
		start:   time.Now(),
	}
}

// Update matches graph.ProgressFunc.
func (r *parseProgressReporter) Update(file string, count, total int) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	if count > r.count {
		r.count = count
	}
	file = strings.TrimSpace(file)
	if len(file) > 88 {
		file = "..." + file[len(file)-85:]
	}

	status := fmt.Sprintf("%s %s %d parsing %s", frame, r.label, r.count, file)
	if total > 0 {
		status = fmt.Sprintf("%s %s %d/%d parsing %s", frame, r.label, r.count, total, file)
	}
	r.printStatus(status)
}

// Done finishes the status line, if one was drawn, and resets the reporter.
func (r *parseProgressReporter) Done() {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastLen == 0 {
		return
	}

	elapsed := time.Since(r.start).Round(time.Millisecond)
	status := fmt.Sprintf("%s complete (%d files in %s)", r.label, r.count, elapsed)
	r.printStatus(status)
	fmt.Fprintln(r.out)
	r.lastLen = 0
	r.count = 0
	r.start = time.Now()
}

func (r *parseProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.out, "\r%s", status)
}
