package ollama

import (
	"fmt"
	"strings"
)

// maxDocumentExcerptRunes bounds how much of the source document goes
// into each enrichment prompt; models with small context windows choke
// on full documents.
const maxDocumentExcerptRunes = 8000

func buildContextPrompt(fullText, chunkContent string) string {
	var sb strings.Builder
	sb.WriteString("You are indexing a document for semantic search.\n\n")
	sb.WriteString("<document>\n")
	sb.WriteString(truncateRunes(fullText, maxDocumentExcerptRunes))
	sb.WriteString("\n</document>\n\n")
	sb.WriteString("<chunk>\n")
	sb.WriteString(chunkContent)
	sb.WriteString("\n</chunk>\n\n")
	sb.WriteString("Write one or two short sentences situating the chunk within the overall document, ")
	sb.WriteString("so the chunk can be retrieved on its own. ")
	sb.WriteString("Answer with the sentences only, no preamble.")
	return sb.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return fmt.Sprintf("%s\n[... truncated ...]", string(runes[:limit]))
}
