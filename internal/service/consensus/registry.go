package consensus

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Similarity returns the indel ratio of a and b: 2*LCS / (len(a)+len(b)), in [0,1].
func Similarity(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(total)
}

// Normalize strips OCR padding and whitespace and upper-cases the rest.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// Registry holds every identifier seen during the run, in first-seen order.
type Registry struct {
	mu        sync.Mutex
	threshold float64
	known     []string
}

func NewRegistry(threshold float64) *Registry {
	return &Registry{threshold: threshold}
}

// Canonicalize maps raw to the most similar known identifier when the
// similarity reaches the threshold; otherwise raw becomes a new identifier.
// Ties resolve to the identifier registered first.
func (r *Registry) Canonicalize(raw string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	best, bestScore := "", -1.0
	for _, id := range r.known {
		if score := Similarity(raw, id); score > bestScore {
			best, bestScore = id, score
		}
	}
	if best != "" && bestScore >= r.threshold {
		return best
	}
	r.known = append(r.known, raw)
	return raw
}

// Known returns the registered identifiers in first-seen order.
func (r *Registry) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.known))
	copy(out, r.known)
	return out
}

// Reset forgets every identifier.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known = nil
}
