package guidance

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[.,;:!?()]`)

// Whole-word abbreviations that vary between otherwise identical instructions
var abbreviations = map[string]string{
	"st":   "street",
	"ave":  "avenue",
	"rd":   "road",
	"blvd": "boulevard",
	"dr":   "drive",
	"hwy":  "highway",
	"n":    "north",
	"s":    "south",
	"e":    "east",
	"w":    "west",
}

// ContentHasher provides content-based deduplication for instructions
type ContentHasher struct{}

// NewContentHasher creates a new content hasher
func NewContentHasher() *ContentHasher {
	return &ContentHasher{}
}

// HashInstruction creates a content hash for an instruction, ignoring markup,
// case, punctuation and common street abbreviations
func (h *ContentHasher) HashInstruction(instruction string) string {
	hash := sha256.Sum256([]byte(h.normalizeText(instruction)))
	return fmt.Sprintf("%x", hash)
}

func (h *ContentHasher) normalizeText(text string) string {
	normalized := strings.ToLower(StripMarkup(text))
	normalized = punctuation.ReplaceAllString(normalized, "")

	words := strings.Fields(normalized)
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}
