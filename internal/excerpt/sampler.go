// Package excerpt samples a few bounded passages spread across a chapter so that
// mood classification sees the whole chapter rather than its opening lines.
package excerpt

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"unicode"
)

const (
	DefaultMinLength    = 200
	DefaultTargetLength = 400
	DefaultMaxLength    = 600

	// Separator is placed between excerpts when they are joined into one prompt.
	Separator = "\n\n---\n\n"
)

// DefaultPositions are the relative chapter positions excerpts are centred on.
var DefaultPositions = []float64{0.10, 0.50, 0.85}

// Excerpt is a contiguous slice of chapter text.
// Offset is measured in runes from the start of the chapter.
type Excerpt struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// Sampler is safe for concurrent use.
type Sampler struct {
	positions []float64
	minLen    int
	targetLen int
	maxLen    int

	jitter float64
	mu     sync.Mutex
	rnd    *rand.Rand
}

type Option func(*Sampler)

// WithPositions overrides the relative positions in [0,1].
func WithPositions(positions ...float64) Option {
	return func(s *Sampler) {
		if len(positions) > 0 {
			s.positions = append([]float64(nil), positions...)
		}
	}
}

// WithLengths overrides the excerpt bounds in runes. Invalid combinations are ignored.
func WithLengths(minLen, targetLen, maxLen int) Option {
	return func(s *Sampler) {
		if minLen > 0 && minLen <= targetLen && targetLen <= maxLen {
			s.minLen, s.targetLen, s.maxLen = minLen, targetLen, maxLen
		}
	}
}

// WithJitter shifts every position by up to ±fraction of the chapter length on each call.
// A zero fraction keeps sampling deterministic.
func WithJitter(fraction float64, seed uint64) Option {
	return func(s *Sampler) {
		if fraction <= 0 {
			return
		}
		s.jitter = min(fraction, 0.5)
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewSampler creates a sampler that takes excerpts of 200 to 600 runes around
// 10%, 50% and 85% of the chapter. Without WithJitter the output is deterministic.
//
// Example:
//
//	s := excerpt.NewSampler(excerpt.WithLengths(150, 300, 500))
//	prompt := excerpt.Join(s.Sample(chapterText))
func NewSampler(opts ...Option) *Sampler {
	s := &Sampler{
		positions: append([]float64(nil), DefaultPositions...),
		minLen:    DefaultMinLength,
		targetLen: DefaultTargetLength,
		maxLen:    DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bounds returns the configured minimum and maximum excerpt length in runes.
func (s *Sampler) Bounds() (int, int) {
	return s.minLen, s.maxLen
}

// Sample returns the ordered excerpts for a chapter. It never returns an empty slice:
// blank text yields one empty excerpt and text no longer than the maximum length
// yields the whole chapter.
func (s *Sampler) Sample(text string) []Excerpt {
	runes := []rune(text)
	lo, hi := trimBounds(runes, 0, len(runes))
	if lo == hi {
		return []Excerpt{{Text: "", Offset: 0}}
	}
	if hi-lo <= s.maxLen {
		return []Excerpt{{Text: string(runes[lo:hi]), Offset: lo}}
	}

	n := len(runes)
	out := make([]Excerpt, 0, len(s.positions))
	floor := lo
	for _, p := range s.positionsForCall() {
		center := int(p * float64(n))
		start := max(center-s.targetLen/2, floor)
		if start > hi-s.minLen {
			break
		}
		limit := min(start+s.targetLen/2, hi-s.minLen)
		start = skipSpace(runes, snapStart(runes, start, limit), hi)
		if start > hi-s.minLen {
			break
		}
		end := s.snapEnd(runes, start, hi)
		out = append(out, Excerpt{Text: string(runes[start:end]), Offset: start})
		floor = end
	}

	if len(out) == 0 {
		// Only reachable with unusual position sets; fall back to the opening.
		end := s.snapEnd(runes, lo, hi)
		out = append(out, Excerpt{Text: string(runes[lo:end]), Offset: lo})
	}
	return out
}

func (s *Sampler) positionsForCall() []float64 {
	positions := append([]float64(nil), s.positions...)
	if s.rnd != nil {
		s.mu.Lock()
		for i := range positions {
			positions[i] += (s.rnd.Float64()*2 - 1) * s.jitter
		}
		s.mu.Unlock()
	}
	for i := range positions {
		positions[i] = min(max(positions[i], 0), 1)
	}
	slices.Sort(positions)
	return positions
}

// snapStart moves start forward to the beginning of the next sentence when one
// begins at or before limit; otherwise start is kept as a hard offset.
func snapStart(r []rune, start, limit int) int {
	if start == 0 {
		return 0
	}
	for j := start - 1; j < limit; j++ {
		if !endsSentence(r, j) {
			continue
		}
		k := j + 1
		for k < len(r) && unicode.IsSpace(r[k]) {
			k++
		}
		if k <= limit {
			return k
		}
		break
	}
	return start
}

// snapEnd picks the sentence end closest to the target length that keeps the
// excerpt within bounds, or a hard cut near the target length when there is none.
// start must not be whitespace and n must be the end of the trimmed text. Lengths
// are measured without trailing whitespace.
func (s *Sampler) snapEnd(r []rune, start, n int) int {
	hardEnd := min(start+s.maxLen, n)
	target := start + s.targetLen

	best := -1
	for j := start + s.minLen - 1; j < hardEnd; j++ {
		if !endsSentence(r, j) {
			continue
		}
		end := trimEnd(r, start, j+1)
		if end-start < s.minLen {
			continue
		}
		if best < 0 || abs(end-target) < abs(best-target) {
			best = end
		}
	}
	if best >= 0 {
		return best
	}
	if hardEnd == n {
		return n
	}
	if end := trimEnd(r, start, target); end-start >= s.minLen {
		return end
	}
	// The cut landed in a long whitespace run; take the next word that reaches the minimum.
	for j := target; j < hardEnd; j++ {
		if !unicode.IsSpace(r[j]) && j+1-start >= s.minLen {
			return j + 1
		}
	}
	return trimEnd(r, start, hardEnd)
}

// endsSentence reports whether a sentence or paragraph ends at rune j.
func endsSentence(r []rune, j int) bool {
	if j < 0 || j >= len(r) {
		return false
	}
	c := r[j]
	if c == '\n' {
		return true
	}
	followedByBreak := j+1 == len(r) || unicode.IsSpace(r[j+1])
	if isTerminal(c) {
		if j+1 < len(r) && isCloser(r[j+1]) {
			return false
		}
		return followedByBreak || isWideTerminal(c)
	}
	if isCloser(c) && j > 0 && isTerminal(r[j-1]) {
		return followedByBreak || isWideTerminal(r[j-1])
	}
	return false
}

// isWideTerminal covers CJK punctuation, which is not followed by a space.
func isWideTerminal(c rune) bool {
	return c == '。' || c == '！' || c == '？'
}

func isTerminal(c rune) bool {
	switch c {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func isCloser(c rune) bool {
	switch c {
	case '"', '\'', '”', '’', ')', ']', '»', '」', '』':
		return true
	}
	return false
}

func trimBounds(r []rune, start, end int) (int, int) {
	start = skipSpace(r, start, end)
	return start, trimEnd(r, start, end)
}

func trimEnd(r []rune, start, end int) int {
	for end > start && unicode.IsSpace(r[end-1]) {
		end--
	}
	return end
}

func skipSpace(r []rune, start, end int) int {
	for start < end && unicode.IsSpace(r[start]) {
		start++
	}
	return start
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Join concatenates excerpt texts with Separator, skipping empty ones.
func Join(excerpts []Excerpt) string {
	parts := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		if e.Text != "" {
			parts = append(parts, e.Text)
		}
	}
	return strings.Join(parts, Separator)
}
