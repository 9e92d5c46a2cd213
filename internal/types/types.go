package ziptypes

import (
	"maps"
	"slices"
)

// ArchiveSummary represents the outcome of processing one archive
type ArchiveSummary struct {
	Path    string
	Target  string // target encoding name
	Entries int
	Files   []FileResult // one per entry, directory order

	Renamed    int // entries whose name bytes changed
	MarkerOnly int // entries where only flags or comment changed

	// Encodings counts entries per resolved source encoding
	Encodings map[string]int

	Ambiguous   []NameIssue
	Undecodable []NameIssue

	CommentChanged bool // archive comment was converted
	CommentIssue   *NameIssue

	Hint           string // archive-wide charset hint, empty if none
	HintConfidence int

	DryRun    bool
	Rewritten bool
}

// NewArchiveSummary creates an empty summary for path
func NewArchiveSummary(path, target string, dryRun bool) *ArchiveSummary {
	return &ArchiveSummary{
		Path:      path,
		Target:    target,
		Encodings: make(map[string]int),
		DryRun:    dryRun,
	}
}

// Add records the result for one entry
func (s *ArchiveSummary) Add(f FileResult) {
	s.Files = append(s.Files, f)
	s.Entries++
	if f.Source != "" {
		s.Encodings[f.Source]++
	}

	switch {
	case f.Status == StatusFixed && f.Renamed:
		s.Renamed++
	case f.Status == StatusFixed:
		s.MarkerOnly++
	}

	if f.Issue == nil {
		return
	}
	switch f.Issue.Kind {
	case IssueAmbiguous, IssueUndetected:
		s.Ambiguous = append(s.Ambiguous, *f.Issue)
	case IssueUndecodable, IssueUnencodable:
		s.Undecodable = append(s.Undecodable, *f.Issue)
	}
}

// Changed reports whether anything in the archive differs from the input
func (s *ArchiveSummary) Changed() bool {
	return s.Renamed > 0 || s.MarkerOnly > 0 || s.CommentChanged
}

// Changes returns the entries that were (or would be) fixed
func (s *ArchiveSummary) Changes() []FileResult {
	var out []FileResult
	for _, f := range s.Files {
		if f.Status == StatusFixed {
			out = append(out, f)
		}
	}
	return out
}

// EncodingNames returns the histogram keys in sorted order
func (s *ArchiveSummary) EncodingNames() []string {
	return slices.Sorted(maps.Keys(s.Encodings))
}

// FileResult represents the conversion outcome of one entry
type FileResult struct {
	Index      int
	Name       string // original name for display
	NewName    string // converted name for display
	Source     string // resolved source encoding, empty if unresolved
	Resolution string
	Renamed    bool
	Status     FileStatus
	Issue      *NameIssue
}

// FileStatus represents what happened to one entry
type FileStatus int

const (
	StatusOK FileStatus = iota
	StatusFixed
	StatusSkipped
)

func (s FileStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusFixed:
		return "FIXED"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "Unknown"
	}
}

// NameIssue represents a name that was not converted cleanly
type NameIssue struct {
	Index  int
	Name   string
	Kind   IssueKind
	Detail string
}

// IssueKind represents why a name was flagged
type IssueKind int

const (
	IssueAmbiguous   IssueKind = iota // converted, but a different reading scored close
	IssueUndetected                   // no candidate reached the minimum confidence
	IssueUndecodable                  // source encoding cannot decode the name
	IssueUnencodable                  // target encoding cannot represent the name
)

func (k IssueKind) String() string {
	switch k {
	case IssueAmbiguous:
		return "ambiguous"
	case IssueUndetected:
		return "undetected"
	case IssueUndecodable:
		return "undecodable"
	case IssueUnencodable:
		return "unencodable"
	default:
		return "Unknown"
	}
}
