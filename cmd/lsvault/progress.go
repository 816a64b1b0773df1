package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lsvault/lsvault/internal/services/sync"
)

// ProgressDisplay renders executor progress on a TTY as a single
// rewritten line. Off-TTY it stays silent; the summary carries the
// result.
type ProgressDisplay struct {
	tty     bool
	lastLen int
}

func NewProgressDisplay() *ProgressDisplay {
	return &ProgressDisplay{
		tty: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Observe is a sync.ProgressFunc.
func (p *ProgressDisplay) Observe(pr sync.Progress) {
	if !p.tty || jsonOutput {
		return
	}

	switch pr.Phase {
	case sync.PhaseScanning:
		p.line("Scanning...")
	case sync.PhaseTransferring:
		p.line(fmt.Sprintf("[%d/%d] %s (%s)", pr.Index, pr.Total, pr.Path, formatBytes(pr.Bytes)))
	case sync.PhaseDeleting:
		p.line(fmt.Sprintf("[%d/%d] removing %s", pr.Index, pr.Total, pr.Path))
	case sync.PhaseDone:
		p.Close()
	}
}

func (p *ProgressDisplay) line(s string) {
	pad := ""
	if n := p.lastLen - len(s); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(os.Stdout, "\r%s%s", s, pad)
	p.lastLen = len(s)
}

// Close erases the progress line so the summary starts clean.
func (p *ProgressDisplay) Close() {
	if !p.tty || p.lastLen == 0 {
		return
	}
	fmt.Fprintf(os.Stdout, "\r%s\r", strings.Repeat(" ", p.lastLen))
	p.lastLen = 0
}
