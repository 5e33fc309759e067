package qa

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a careful medical assistant. Answer the question using only the information in the provided context.
Keep the answer to two or three short paragraphs at most.
If the context does not contain the answer, say that you don't know instead of guessing.
Do not provide a diagnosis; recommend consulting a healthcare professional when appropriate.`

const userPrompt = `Context:
{context}

Question: {query}`

// formatContext renders retrieved passages as a numbered list for the prompt.
func formatContext(sources []Source) string {
	if len(sources) == 0 {
		return "(no relevant passages found)"
	}

	var builder strings.Builder
	for i, src := range sources {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(fmt.Sprintf("[%d] %s", i+1, strings.TrimSpace(src.Content)))
	}
	return builder.String()
}
