// Package recode drives one archive through scan, detection, conversion
// and rewrite, and runs batches of archives concurrently.
package recode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ossyrian/runzip/internal/config"
	"github.com/ossyrian/runzip/internal/convert"
	"github.com/ossyrian/runzip/internal/detect"
	"github.com/ossyrian/runzip/internal/parser"
	"github.com/ossyrian/runzip/internal/rewriter"
	ziptypes "github.com/ossyrian/runzip/internal/types"
	"github.com/ossyrian/runzip/internal/zipfmt"
)

// Recoder processes archives with one resolved configuration.
// It holds no per-archive state and is safe for concurrent use.
type Recoder struct {
	opts     config.Options
	detector *detect.Detector
	logger   *slog.Logger
}

// New creates a Recoder. A nil logger uses slog.Default().
func New(opts config.Options, logger *slog.Logger) *Recoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recoder{
		opts:     opts,
		detector: detect.New(),
		logger:   logger,
	}
}

// Process recodes the archive at path with the default logger.
func Process(ctx context.Context, path string, opts config.Options) (*ziptypes.ArchiveSummary, error) {
	return New(opts, nil).Process(ctx, path)
}

// Process scans the archive at path, plans every entry and, unless this is
// a dry run or nothing changed, rewrites it in place atomically.
// Any returned error leaves the file untouched.
func (r *Recoder) Process(ctx context.Context, path string) (*ziptypes.ArchiveSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := r.logger.With("archive", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", zipfmt.ErrIO, err)
	}
	defer file.Close()

	maxSize := r.opts.MaxArchiveSize
	if maxSize == 0 {
		maxSize = parser.DefaultMaxArchiveSize
	}
	model, err := parser.Parse(file, logger, maxSize)
	if err != nil {
		return nil, err
	}

	summary := ziptypes.NewArchiveSummary(path, r.opts.Target.String(), r.opts.DryRun)

	var hint detect.Hint
	if r.opts.Source == nil {
		hint = detect.ArchiveHint(legacyNames(model))
		if hint.Valid() {
			summary.Hint = hint.Encoding.String()
			summary.HintConfidence = hint.Confidence
			logger.Debug("archive charset hint", "encoding", summary.Hint, "confidence", hint.Confidence)
		}
	}

	conv := convert.New(convert.Options{
		Source:   r.opts.Source,
		Target:   r.opts.Target,
		Detector: r.detector,
		Hint:     hint,
	})

	plans := make([]convert.Plan, len(model.Entries))
	for i := range model.Entries {
		e := &model.Entries[i]
		plans[i] = conv.PlanEntry(e)
		r.logEntry(logger, i, e, &plans[i])
		summary.Add(fileResult(i, e, &plans[i]))
	}

	comment, err := conv.PlanArchiveComment(model.Comment)
	if err != nil {
		summary.CommentIssue = &ziptypes.NameIssue{Index: -1, Name: convert.Display(model.Comment), Kind: issueKind(err), Detail: err.Error()}
		logger.Warn("archive comment left unchanged", "error", err)
	}
	summary.CommentChanged = !bytes.Equal(comment, model.Comment)

	if !summary.Changed() {
		logger.Info("nothing to recode", "entries", summary.Entries)
		return summary, nil
	}
	if r.opts.DryRun {
		logger.Info("dry run, archive not written",
			"entries", summary.Entries,
			"renamed", summary.Renamed,
			"flag_only", summary.MarkerOnly,
		)
		return summary, nil
	}

	// the source is released before the rename, the deferred Close is then a no-op
	err = rewriter.ReplaceFile(ctx, path, func(w io.Writer) error {
		_, err := rewriter.Rewrite(ctx, file, model, plans, comment, w, logger)
		return err
	}, file)
	if err != nil {
		return nil, err
	}
	summary.Rewritten = true

	logger.Info("recoded archive",
		"entries", summary.Entries,
		"renamed", summary.Renamed,
		"flag_only", summary.MarkerOnly,
		"ambiguous", len(summary.Ambiguous),
		"undecodable", len(summary.Undecodable),
	)

	return summary, nil
}

func (r *Recoder) logEntry(logger *slog.Logger, i int, e *zipfmt.EntryRecord, p *convert.Plan) {
	if r.opts.Verbosity >= 2 {
		logger.Debug("raw entry name", "index", i, "bytes", fmt.Sprintf("% x", e.Name))
	}
	logger.Debug("planned entry",
		"index", i,
		"name", convert.Display(e.Name),
		"resolution", p.Resolution.String(),
		"source", p.Source.String(),
		"score", p.Score,
		"changed", p.Changed,
	)
	if p.Err != nil {
		logger.Warn("entry left unchanged", "index", i, "name", convert.Display(e.Name), "error", p.Err)
	}
	if p.CommentErr != nil {
		logger.Warn("entry comment left unchanged", "index", i, "error", p.CommentErr)
	}
}

// legacyNames returns the names that detection may have to guess.
func legacyNames(model *zipfmt.ContainerModel) [][]byte {
	var names [][]byte
	for i := range model.Entries {
		if !model.Entries[i].IsUTF8() {
			names = append(names, model.Entries[i].Name)
		}
	}
	return names
}

func fileResult(i int, e *zipfmt.EntryRecord, p *convert.Plan) ziptypes.FileResult {
	f := ziptypes.FileResult{
		Index:      i,
		Name:       convert.Display(e.Name),
		NewName:    p.Text,
		Source:     sourceName(p),
		Resolution: p.Resolution.String(),
		Renamed:    p.Renamed,
	}
	if f.NewName == "" {
		f.NewName = f.Name
	}

	switch {
	case p.Err != nil:
		f.Status = ziptypes.StatusSkipped
		f.Issue = &ziptypes.NameIssue{Index: i, Name: f.Name, Kind: issueKind(p.Err), Detail: p.Err.Error()}
	case p.Resolution == convert.ResolutionUnknown:
		f.Status = ziptypes.StatusSkipped
		f.Issue = &ziptypes.NameIssue{Index: i, Name: f.Name, Kind: ziptypes.IssueUndetected,
			Detail: fmt.Sprintf("no encoding reached confidence %.2f (best %.2f)", detect.DefaultMinConfidence, p.Score)}
	case p.Changed:
		f.Status = ziptypes.StatusFixed
	default:
		f.Status = ziptypes.StatusOK
	}

	if p.Ambiguous && p.Err == nil {
		f.Issue = &ziptypes.NameIssue{Index: i, Name: f.Name, Kind: ziptypes.IssueAmbiguous,
			Detail: fmt.Sprintf("read as %s, %s scored within %.2f", p.Source, p.RunnerUp, detect.DefaultAmbiguityMargin)}
	}
	return f
}

// sourceName is the histogram key for a plan.
func sourceName(p *convert.Plan) string {
	switch p.Resolution {
	case convert.ResolutionASCII:
		return "ascii"
	case convert.ResolutionUnknown:
		return "unknown"
	default:
		return p.Source.String()
	}
}

func issueKind(err error) ziptypes.IssueKind {
	if errors.Is(err, zipfmt.ErrUnencodableName) {
		return ziptypes.IssueUnencodable
	}
	return ziptypes.IssueUndecodable
}
