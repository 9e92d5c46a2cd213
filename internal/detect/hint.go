package detect

import (
	"bytes"

	"github.com/saintfish/chardet"

	"github.com/ossyrian/runzip/internal/codepage"
)

// MinHintConfidence is the lowest chardet confidence (1-100) accepted as an archive hint.
const MinHintConfidence = 50

// Hint is a charset guess made over all legacy names of one archive at once.
type Hint struct {
	Encoding   codepage.Encoding
	Confidence int
}

// Valid reports whether the hint names a legacy candidate.
func (h Hint) Valid() bool {
	return h.Encoding.IsLegacy()
}

// ArchiveHint runs chardet over the non-ASCII names joined by newlines.
// Only results naming one of codepage.Candidates with at least
// MinHintConfidence are returned; otherwise the zero Hint.
func ArchiveHint(names [][]byte) Hint {
	var sample [][]byte
	for _, n := range names {
		if !codepage.IsASCII(n) {
			sample = append(sample, n)
		}
	}
	if len(sample) == 0 {
		return Hint{}
	}

	results, err := chardet.NewTextDetector().DetectAll(bytes.Join(sample, []byte{'\n'}))
	if err != nil {
		return Hint{}
	}

	// chardet sorts by confidence only, so equal results are ordered here
	// by candidate preference to keep the hint deterministic.
	confidence := make([]int, len(codepage.Candidates))
	for _, r := range results {
		enc, err := codepage.Parse(r.Charset)
		if err != nil {
			continue
		}
		for i, c := range codepage.Candidates {
			if c == enc && r.Confidence > confidence[i] {
				confidence[i] = r.Confidence
			}
		}
	}

	var best Hint
	for i, c := range codepage.Candidates {
		if confidence[i] >= MinHintConfidence && confidence[i] > best.Confidence {
			best = Hint{Encoding: c, Confidence: confidence[i]}
		}
	}
	return best
}

// Resolve picks between an ambiguous result and its runner-up using the hint.
// Unambiguous results, or hints naming neither contender, are returned unchanged.
func (h Hint) Resolve(res Result) Result {
	if !res.Ambiguous || !h.Valid() {
		return res
	}
	switch h.Encoding {
	case res.Encoding:
		res.Ambiguous = false
	case res.RunnerUp:
		res.Encoding, res.RunnerUp = res.RunnerUp, res.Encoding
		res.Score, res.RunnerUpScore = res.RunnerUpScore, res.Score
		res.Ambiguous = false
	}
	return res
}
