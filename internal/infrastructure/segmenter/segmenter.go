// Package segmenter splits plain text into ordered, bounded, overlapping
// fragments and attaches a provisional quality score to each. The scoring
// formula is a pluggable strategy; downstream code relies only on scores
// staying in [0,100] and indices being dense and zero-based.
package segmenter

import (
	"strings"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

type Segmenter struct {
	scorer Scorer
}

func New(scorer Scorer) *Segmenter {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	return &Segmenter{scorer: scorer}
}

func (s *Segmenter) Segment(text string, cfg domain.SegmentConfig) []domain.Fragment {
	cfg = normalize(cfg)

	var pieces []piece
	if cfg.PreserveStructure {
		pieces = packParagraphs(text, cfg.MaxChunkSize, cfg.Overlap)
	} else {
		pieces = slidingWindow(text, cfg.MaxChunkSize, cfg.Overlap)
	}

	out := make([]domain.Fragment, 0, len(pieces))
	for _, p := range pieces {
		content := strings.TrimSpace(p.content)
		if content == "" {
			continue
		}
		out = append(out, domain.Fragment{
			Index:        len(out),
			Content:      content,
			QualityScore: clampScore(s.scorer.Score(content, cfg.MaxChunkSize)),
			Metadata: domain.FragmentMetadata{
				StartOffset: p.start,
				EndOffset:   p.end,
				WordCount:   len(strings.Fields(content)),
				HasHeading:  startsWithHeading(content),
			},
		})
	}
	return out
}

type piece struct {
	content string
	start   int
	end     int
}

func slidingWindow(text string, size, overlap int) []piece {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	out := make([]piece, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, piece{
			content: string(runes[start:end]),
			start:   start,
			end:     end,
		})
		if end == len(runes) {
			break
		}
	}
	return out
}

// packParagraphs greedily fills fragments with whole paragraphs, seeding
// each new fragment with the tail of the previous one so neighboring
// fragments share context. Paragraphs larger than the budget fall back
// to the sliding window.
func packParagraphs(text string, size, overlap int) []piece {
	paragraphs := strings.Split(text, "\n\n")

	var out []piece
	var current strings.Builder
	offset := 0
	start := 0

	flush := func(end int) {
		if current.Len() == 0 {
			return
		}
		out = append(out, piece{content: current.String(), start: start, end: end})
		tail := overlapTail(current.String(), overlap)
		current.Reset()
		current.WriteString(tail)
		start = end - len([]rune(tail))
		if start < 0 {
			start = 0
		}
	}

	for _, para := range paragraphs {
		paraRunes := len([]rune(para))

		if paraRunes > size {
			flush(offset)
			for _, w := range slidingWindow(para, size, overlap) {
				out = append(out, piece{content: w.content, start: offset + w.start, end: offset + w.end})
			}
			current.Reset()
			start = offset + paraRunes
		} else {
			if len([]rune(current.String()))+paraRunes > size {
				flush(offset)
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
		offset += paraRunes + 2
	}
	flush(offset)
	return out
}

func overlapTail(content string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= overlap {
		return content
	}
	return string(runes[len(runes)-overlap:])
}

func startsWithHeading(content string) bool {
	line, _, _ := strings.Cut(content, "\n")
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

func normalize(cfg domain.SegmentConfig) domain.SegmentConfig {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 1000
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxChunkSize {
		cfg.Overlap = cfg.MaxChunkSize / 4
	}
	return cfg
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
