package report

import (
	"io"

	"github.com/schollz/progressbar/v3"

	ziptypes "github.com/ossyrian/runzip/internal/types"
)

// Progress wraps a Sink and advances a progress bar for every finished archive.
type Progress struct {
	next Sink
	bar  *progressbar.ProgressBar
}

// NewProgress creates a bar for total archives drawn on w.
func NewProgress(next Sink, w io.Writer, total int) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Recoding"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer: "█", SaucerHead: "█", SaucerPadding: "░",
			BarStart: "[", BarEnd: "]",
		}),
	)
	return &Progress{next: next, bar: bar}
}

func (p *Progress) Summary(s *ziptypes.ArchiveSummary) {
	p.next.Summary(s)
	_ = p.bar.Add(1) //nolint:errcheck // progress output is best effort
}

func (p *Progress) Failure(path string, err error) {
	p.next.Failure(path, err)
	_ = p.bar.Add(1) //nolint:errcheck // progress output is best effort
}

func (p *Progress) Diagnostic(format string, args ...any) {
	p.next.Diagnostic(format, args...)
}

// Finish completes and clears the bar.
func (p *Progress) Finish() {
	_ = p.bar.Finish() //nolint:errcheck // progress output is best effort
}
