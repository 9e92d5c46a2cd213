// Package report prints archive summaries for humans.
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	ziptypes "github.com/ossyrian/runzip/internal/types"
)

// Sink receives results from concurrent workers.
// Implementations must be safe for concurrent use.
type Sink interface {
	Summary(s *ziptypes.ArchiveSummary)
	Failure(path string, err error)
	Diagnostic(format string, args ...any)
}

// Printer writes summaries to out and failures and diagnostics to errOut.
// Each call is written as one block, so output from different archives
// never interleaves.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	verbose int

	red    func(a ...any) string
	green  func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
}

// NewPrinter creates a Printer. verbose >= 1 adds detection details.
func NewPrinter(out, errOut io.Writer, verbose int, noColor bool) *Printer {
	sprint := func(attr color.Attribute) func(a ...any) string {
		c := color.New(attr)
		if noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &Printer{
		out:     out,
		errOut:  errOut,
		verbose: verbose,
		red:     sprint(color.FgRed),
		green:   sprint(color.FgGreen),
		yellow:  sprint(color.FgYellow),
		cyan:    sprint(color.FgCyan),
	}
}

// Summary prints one line per entry followed by the archive totals.
func (p *Printer) Summary(s *ziptypes.ArchiveSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	plural := "s"
	if s.Entries == 1 {
		plural = ""
	}
	fmt.Fprintf(p.out, "%s contains %d file%s\n", p.cyan(s.Path), s.Entries, plural)

	if p.verbose > 0 && s.Hint != "" {
		fmt.Fprintf(p.out, "  archive charset hint: %s (confidence %d)\n", s.Hint, s.HintConfidence)
	}

	fixed := "FIXED"
	if s.DryRun {
		fixed = "WOULD FIX"
	}

	for _, f := range s.Files {
		switch f.Status {
		case ziptypes.StatusFixed:
			name := f.NewName
			if p.verbose > 0 && f.Renamed {
				name = fmt.Sprintf("%s -> %s", f.Name, f.NewName)
			}
			fmt.Fprintf(p.out, "  %s: %s (%s -> %s)\n", name, p.green(fixed), f.Source, s.Target)
		case ziptypes.StatusSkipped:
			fmt.Fprintf(p.out, "  %s: %s (%s)\n", f.Name, p.red("SKIPPED"), f.Issue.Detail)
		default:
			fmt.Fprintf(p.out, "  %s: OK\n", f.Name)
		}
		if f.Issue != nil && f.Issue.Kind == ziptypes.IssueAmbiguous {
			fmt.Fprintf(p.out, "    %s %s\n", p.yellow("ambiguous:"), f.Issue.Detail)
		}
	}

	if s.CommentChanged {
		fmt.Fprintf(p.out, "  archive comment: %s\n", p.green(fixed))
	}
	if s.CommentIssue != nil {
		fmt.Fprintf(p.out, "  archive comment: %s (%s)\n", p.red("SKIPPED"), s.CommentIssue.Detail)
	}

	if p.verbose > 0 {
		for _, enc := range s.EncodingNames() {
			fmt.Fprintf(p.out, "  %s: %d\n", enc, s.Encodings[enc])
		}
	}

	switch {
	case !s.Changed():
		fmt.Fprintf(p.out, "  nothing to do\n")
	case s.DryRun:
		fmt.Fprintf(p.out, "  %d renamed, %d flag-only (dry run, not written)\n", s.Renamed, s.MarkerOnly)
	default:
		fmt.Fprintf(p.out, "  %d renamed, %d flag-only\n", s.Renamed, s.MarkerOnly)
	}
	if n := len(s.Ambiguous) + len(s.Undecodable); n > 0 {
		fmt.Fprintf(p.out, "  %s %d ambiguous, %d undecodable\n", p.yellow("warning:"), len(s.Ambiguous), len(s.Undecodable))
	}
}

// Failure reports an archive that could not be processed.
func (p *Printer) Failure(path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.errOut, "%s processing %s: %v\n", p.red("Error"), path, err)
}

// Diagnostic writes a free-form line to errOut.
func (p *Printer) Diagnostic(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.errOut, format+"\n", args...)
}
