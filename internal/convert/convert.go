// Package convert turns raw entry names and comments into the target encoding.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ossyrian/runzip/internal/codepage"
	"github.com/ossyrian/runzip/internal/detect"
	"github.com/ossyrian/runzip/internal/zipfmt"
)

// Resolution records how the source encoding of a name was chosen.
type Resolution int

const (
	ResolutionUnknown  Resolution = iota // detection failed, left unchanged
	ResolutionForced                     // caller supplied the source
	ResolutionDetected                   // detector picked the source
	ResolutionMarker                     // EFS bit already set
	ResolutionExtra                      // Info-ZIP Unicode Path extra field
	ResolutionASCII                      // 7-bit name, same in every encoding
)

func (r Resolution) String() string {
	switch r {
	case ResolutionForced:
		return "forced"
	case ResolutionDetected:
		return "detected"
	case ResolutionMarker:
		return "marker"
	case ResolutionExtra:
		return "extra"
	case ResolutionASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// Plan is the conversion outcome for one entry.
type Plan struct {
	Source     codepage.Encoding
	Resolution Resolution
	Score      float64 // detector score, 0 unless detected
	Ambiguous  bool
	RunnerUp   codepage.Encoding // closest other reading when Ambiguous

	Name    []byte // new name bytes
	Comment []byte // new comment bytes
	Flags   uint16 // new general purpose flags

	Text string // decoded name, empty when the name could not be decoded

	Renamed bool // name bytes differ
	Changed bool // name, comment or flags differ

	// Err is ErrUndecodableName or ErrUnencodableName when the name was
	// left as is. CommentErr is the same for the comment.
	Err        error
	CommentErr error
}

// Options configures a Converter.
type Options struct {
	Source   *codepage.Encoding // nil means detect per entry
	Target   codepage.Encoding
	Detector *detect.Detector // nil uses detect.New()
	Hint     detect.Hint      // breaks ambiguous detections
}

// Converter builds Plans for the entries of one archive.
type Converter struct {
	source   codepage.Encoding
	forced   bool
	target   codepage.Encoding
	detector *detect.Detector
	hint     detect.Hint
}

// New creates a Converter.
func New(opts Options) *Converter {
	c := &Converter{
		target:   opts.Target,
		detector: opts.Detector,
		hint:     opts.Hint,
	}
	if opts.Source != nil {
		c.source = *opts.Source
		c.forced = true
	}
	if c.detector == nil {
		c.detector = detect.New()
	}
	return c
}

// Convert decodes raw under from and encodes the text to to.
func Convert(raw []byte, from, to codepage.Encoding) ([]byte, error) {
	text, err := from.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", zipfmt.ErrUndecodableName, err)
	}
	return encode(text, to)
}

func encode(text string, to codepage.Encoding) ([]byte, error) {
	out, err := to.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", zipfmt.ErrUnencodableName, err)
	}
	if len(out) > zipfmt.MaxNameLen {
		return nil, fmt.Errorf("%w: %d bytes in %s exceed the field limit", zipfmt.ErrUnencodableName, len(out), to)
	}
	return out, nil
}

// PlanEntry resolves the source encoding of e and converts its name and comment.
// Entries that cannot be converted keep their original bytes and flags.
func (c *Converter) PlanEntry(e *zipfmt.EntryRecord) Plan {
	p := Plan{
		Name:    e.Name,
		Comment: e.Comment,
		Flags:   e.Flags,
	}

	text, ok := c.resolve(e, &p)
	if ok {
		if name, err := encode(text, c.target); err != nil {
			p.Err = err
		} else {
			p.Name = name
			p.Flags = c.targetFlags(e.Flags)
		}
	}

	// an unconverted name keeps its flags, and the comment must stay readable under them
	if p.Err == nil && p.Resolution != ResolutionUnknown {
		p.Comment, p.CommentErr = c.entryComment(e.Comment, p)
	}

	p.Renamed = !bytes.Equal(p.Name, e.Name)
	p.Changed = p.Renamed || p.Flags != e.Flags || !bytes.Equal(p.Comment, e.Comment)
	return p
}

// resolve fills in the source fields of p and returns the decoded name.
func (c *Converter) resolve(e *zipfmt.EntryRecord, p *Plan) (string, bool) {
	switch {
	case e.IsUTF8():
		p.Source = codepage.UTF8
		p.Resolution = ResolutionMarker
	case c.forced:
		p.Source = c.source
		p.Resolution = ResolutionForced
	default:
		if up, ok := e.UnicodePath(); ok && utf8.Valid(up) {
			p.Source = codepage.UTF8
			p.Resolution = ResolutionExtra
			p.Text = string(up)
			return p.Text, true
		}

		res := c.hint.Resolve(c.detector.Detect(e.Name))
		p.Score = res.Score
		p.Ambiguous = res.Ambiguous
		if res.Ambiguous {
			p.RunnerUp = res.RunnerUp
		}
		switch res.Kind {
		case detect.KindASCII:
			p.Source = codepage.UTF8
			p.Resolution = ResolutionASCII
		case detect.KindUTF8, detect.KindLegacy:
			p.Source = res.Encoding
			p.Resolution = ResolutionDetected
		default:
			p.Resolution = ResolutionUnknown
			return "", false
		}
	}

	text, err := p.Source.Decode(e.Name)
	if err != nil {
		p.Err = fmt.Errorf("%w: %w", zipfmt.ErrUndecodableName, err)
		return "", false
	}
	p.Text = text
	return text, true
}

// entryComment converts an entry comment. It follows the name's source,
// except when that source says nothing about the comment (ascii or extra
// field names), in which case the comment is detected on its own.
func (c *Converter) entryComment(comment []byte, p Plan) ([]byte, error) {
	if len(comment) == 0 {
		return comment, nil
	}

	source := p.Source
	if p.Resolution == ResolutionASCII || p.Resolution == ResolutionExtra {
		enc, ok := c.detectText(comment)
		if !ok {
			return comment, nil
		}
		source = enc
	}

	out, err := Convert(comment, source, c.target)
	if err != nil {
		return comment, err
	}
	return out, nil
}

// PlanArchiveComment converts the archive comment using the forced source
// or a detected one. Undetectable comments are returned unchanged.
func (c *Converter) PlanArchiveComment(comment []byte) ([]byte, error) {
	if len(comment) == 0 {
		return comment, nil
	}

	source := c.source
	if !c.forced {
		enc, ok := c.detectText(comment)
		if !ok {
			return comment, nil
		}
		source = enc
	}

	out, err := Convert(comment, source, c.target)
	if err != nil {
		return comment, err
	}
	return out, nil
}

// detectText returns the encoding of free text, or false when it is pure
// ASCII or cannot be determined.
func (c *Converter) detectText(raw []byte) (codepage.Encoding, bool) {
	res := c.hint.Resolve(c.detector.Detect(raw))
	switch res.Kind {
	case detect.KindUTF8, detect.KindLegacy:
		return res.Encoding, true
	default:
		return codepage.Unknown, false
	}
}

func (c *Converter) targetFlags(flags uint16) uint16 {
	if c.target == codepage.UTF8 {
		return flags | zipfmt.FlagUTF8
	}
	return flags &^ zipfmt.FlagUTF8
}

// IsNameError reports whether err leaves an entry unconverted without
// failing the archive.
func IsNameError(err error) bool {
	return errors.Is(err, zipfmt.ErrUndecodableName) || errors.Is(err, zipfmt.ErrUnencodableName)
}

// Display renders raw name bytes for humans: valid UTF-8 as is, anything
// else with escapes.
func Display(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return fmt.Sprintf("%q", raw)
}
