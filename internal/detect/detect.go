// Package detect guesses which legacy Cyrillic code page a filename was written in.
//
// Every candidate table decodes the raw bytes; the decoded text is scored by
// how much it looks like Russian or Ukrainian:
//
//   - alphabet: share of non-ASCII characters that are Cyrillic letters
//   - printable: share of non-ASCII characters that are printable
//   - frequency: mean letter frequency weight of the Cyrillic letters
//   - case: share of Cyrillic letters not following a lowercase one in upper case
//   - bigrams: mean weight of adjacent letter pairs, word edges included
//
// Letter case itself is no evidence: the koi8 tables keep lowercase letters
// where windows-1251 keeps uppercase ones, so an all-caps name in one reads
// as a lowercase name in the other. Only the pairs tell them apart.
//
// A candidate whose table has no mapping for some byte is rejected.
// Scores are combined with fixed weights; the highest wins and ties go to
// the earlier entry of codepage.Candidates.
package detect

import (
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/ossyrian/runzip/internal/codepage"
)

const (
	// DefaultMinConfidence is the lowest score accepted as a detection.
	DefaultMinConfidence = 0.6
	// DefaultAmbiguityMargin is how close a different reading must score to be reported.
	DefaultAmbiguityMargin = 0.03

	weightAlphabet  = 0.30
	weightPrintable = 0.05
	weightFrequency = 0.05
	weightCase      = 0.20
	weightBigram    = 0.40
)

// symbols fed to the bigram table besides lowercase letters
const (
	symBoundary rune = 0  // string edge or ASCII character
	symOther    rune = -1 // any other non-letter, pairs with it weigh 0

	wordStart = '^'
	wordEnd   = '$'
)

// letterFrequency holds percent frequencies of lowercase Russian letters,
// with estimates for the Ukrainian-only letters.
var letterFrequency = map[rune]float64{
	'о': 11.07, 'е': 8.50, 'а': 7.50, 'и': 7.09, 'н': 6.70, 'т': 5.97,
	'с': 4.97, 'л': 4.96, 'в': 4.33, 'р': 4.33, 'к': 3.30, 'м': 3.10,
	'д': 3.09, 'п': 2.47, 'ы': 2.36, 'у': 2.22, 'б': 2.01, 'я': 1.96,
	'ь': 1.84, 'г': 1.72, 'з': 1.48, 'ч': 1.40, 'й': 1.21, 'ж': 1.01,
	'х': 0.95, 'ш': 0.72, 'ю': 0.47, 'ц': 0.39, 'э': 0.35, 'щ': 0.30,
	'ф': 0.21, 'ё': 0.20, 'ъ': 0.02,
	'і': 5.00, 'є': 0.30, 'ї': 0.30, 'ґ': 0.01,
}

const maxLetterFrequency = 11.07

// Kind says what sort of input a Result describes.
type Kind int

const (
	KindUnknown Kind = iota // no candidate reached the minimum confidence
	KindASCII               // 7-bit only, identical under every candidate
	KindUTF8                // already valid UTF-8 with Cyrillic letters
	KindLegacy              // one of the legacy candidates
)

func (k Kind) String() string {
	switch k {
	case KindASCII:
		return "ascii"
	case KindUTF8:
		return "utf-8"
	case KindLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one detection.
type Result struct {
	Kind     Kind
	Encoding codepage.Encoding // codepage.UTF8 for ascii and utf-8 input
	Score    float64

	// Ambiguous is set when RunnerUp decodes the bytes to different text
	// and scores within the ambiguity margin of the winner.
	Ambiguous     bool
	RunnerUp      codepage.Encoding
	RunnerUpScore float64
}

// Detector scores candidate encodings. The zero value is not usable; use New.
type Detector struct {
	candidates      []codepage.Encoding
	minConfidence   float64
	ambiguityMargin float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinConfidence overrides DefaultMinConfidence.
func WithMinConfidence(v float64) Option {
	return func(d *Detector) {
		d.minConfidence = v
	}
}

// WithAmbiguityMargin overrides DefaultAmbiguityMargin.
func WithAmbiguityMargin(v float64) Option {
	return func(d *Detector) {
		d.ambiguityMargin = v
	}
}

// New creates a Detector over codepage.Candidates.
func New(opts ...Option) *Detector {
	d := &Detector{
		candidates:      codepage.Candidates[:],
		minConfidence:   DefaultMinConfidence,
		ambiguityMargin: DefaultAmbiguityMargin,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type scored struct {
	enc   codepage.Encoding
	score float64
	text  string
}

// Detect returns the best-scoring candidate for raw.
func (d *Detector) Detect(raw []byte) Result {
	if codepage.IsASCII(raw) {
		return Result{Kind: KindASCII, Encoding: codepage.UTF8, Score: 1}
	}
	if isCyrillicUTF8(raw) {
		return Result{Kind: KindUTF8, Encoding: codepage.UTF8, Score: 1}
	}

	results := make([]scored, 0, len(d.candidates))
	for _, enc := range d.candidates {
		text, err := enc.Decode(raw)
		if err != nil {
			continue
		}
		results = append(results, scored{enc: enc, score: scoreText(text), text: text})
	}
	if len(results) == 0 {
		return Result{Kind: KindUnknown}
	}

	// stable: equal scores keep candidate preference order
	slices.SortStableFunc(results, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	best := results[0]
	if best.score < d.minConfidence {
		return Result{Kind: KindUnknown, Score: best.score}
	}

	res := Result{Kind: KindLegacy, Encoding: best.enc, Score: best.score}
	for _, other := range results[1:] {
		if other.text == best.text {
			continue
		}
		res.RunnerUp = other.enc
		res.RunnerUpScore = other.score
		res.Ambiguous = best.score-other.score <= d.ambiguityMargin
		break
	}
	return res
}

// Score returns the score of raw decoded under enc.
// ok is false when enc cannot decode raw.
func Score(raw []byte, enc codepage.Encoding) (score float64, ok bool) {
	text, err := enc.Decode(raw)
	if err != nil {
		return 0, false
	}
	return scoreText(text), true
}

// scoreText combines the heuristics over decoded text.
// ASCII characters are the same in every candidate, so the share-based
// measures only look at the rest; for bigrams they act as word boundaries.
func scoreText(text string) float64 {
	var (
		high, alpha, printable int
		letters, flips         int
		freq, bigrams          float64
		pairs                  int
		prevLetter             rune
	)

	prev := symBoundary
	pair := func(sym rune) {
		defer func() { prev = sym }()
		if prev == symBoundary && sym == symBoundary {
			return
		}
		pairs++
		switch {
		case prev == symOther || sym == symOther:
		case sym == symBoundary:
			bigrams += bigramWeight[[2]rune{prev, wordEnd}]
		case prev == symBoundary:
			bigrams += bigramWeight[[2]rune{wordStart, sym}]
		default:
			bigrams += bigramWeight[[2]rune{prev, sym}]
		}
	}

	for _, r := range text {
		isCyr := unicode.IsLetter(r) && unicode.Is(unicode.Cyrillic, r)

		sym := symBoundary
		if r >= utf8.RuneSelf {
			high++
			if isCyr {
				alpha++
			}
			if unicode.IsPrint(r) {
				printable++
			}
			sym = symOther
		}
		if isCyr {
			sym = unicode.ToLower(r)
		}
		pair(sym)

		if !isCyr {
			prevLetter = 0
			continue
		}
		letters++
		freq += letterFrequency[unicode.ToLower(r)]
		if prevLetter != 0 && unicode.IsLower(prevLetter) && unicode.IsUpper(r) {
			flips++
		}
		prevLetter = r
	}
	pair(symBoundary)

	if high == 0 {
		return 0
	}

	score := weightAlphabet*ratio(alpha, high) + weightPrintable*ratio(printable, high)
	if letters > 0 {
		score += weightFrequency * (freq / float64(letters) / maxLetterFrequency)
		score += weightCase * (1 - ratio(flips, max(letters-1, 1)))
	}
	score += weightBigram * bigrams / float64(pairs)
	return score
}

func ratio(n, d int) float64 {
	return float64(n) / float64(d)
}

// isCyrillicUTF8 reports whether raw is valid UTF-8 containing at least one
// Cyrillic letter, as written by tools that do not set the EFS bit.
func isCyrillicUTF8(raw []byte) bool {
	if !utf8.Valid(raw) {
		return false
	}
	for _, r := range string(raw) {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
