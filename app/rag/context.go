package rag

import (
	"fmt"
	"strings"
)

// NoContextMarker is what Assemble produces instead of an empty string when
// nothing usable was retrieved. The orchestrator short-circuits generation on
// it so the remote model never answers without grounding.
const NoContextMarker = "[no context available]"

const previewChars = 200

// Assembler packs ranked passages into a prompt context under a character
// budget. Passages go in whole or not at all: truncating one mid-passage
// would make its citation lie about what the model saw.
type Assembler struct {
	maxChars int
}

func NewAssembler(maxChars int) *Assembler {
	if maxChars <= 0 {
		maxChars = 6000
	}
	return &Assembler{maxChars: maxChars}
}

func (a *Assembler) Assemble(results []ScoredPassage) (string, []Citation) {
	var b strings.Builder
	var citations []Citation

	for _, r := range results {
		p := r.Passage
		block := fmt.Sprintf("[Source %d - %s, %s, %s (%s), Page %d]:\n%s\n\n",
			len(citations)+1, p.ClassLabel, p.Subject, p.BookID, p.Language, p.PageNumber, p.Text)
		if b.Len()+len(block) > a.maxChars {
			continue
		}
		b.WriteString(block)
		citations = append(citations, Citation{
			ClassLabel:     p.ClassLabel,
			Subject:        p.Subject,
			BookID:         p.BookID,
			Language:       p.Language,
			PageNumber:     p.PageNumber,
			ContentPreview: preview(p.Text),
		})
	}

	if len(citations) == 0 {
		return NoContextMarker, nil
	}
	return strings.TrimRight(b.String(), "\n"), citations
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}
