package segmenter

import (
	"strings"
	"unicode"
)

// Scorer grades a fragment's standalone usefulness on a 0-100 scale.
type Scorer interface {
	Score(content string, maxChunkSize int) float64
}

// HeuristicScorer is the default grading strategy: it rewards fragments
// that are reasonably full, mostly prose, and end on a sentence boundary.
type HeuristicScorer struct{}

func (HeuristicScorer) Score(content string, maxChunkSize int) float64 {
	if content == "" {
		return 0
	}

	score := 50.0

	// Fill ratio: fragments far below the budget tend to be stubs.
	fill := float64(len([]rune(content))) / float64(maxChunkSize)
	if fill > 1 {
		fill = 1
	}
	score += 25 * fill

	trimmed := strings.TrimRight(content, " \n\t")
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") {
		score += 15
	}

	score += 10 * letterRatio(content)

	return score
}

func letterRatio(content string) float64 {
	letters := 0
	total := 0
	for _, r := range content {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}
