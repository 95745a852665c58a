package ai

import (
	"fmt"
	"strings"

	"github.com/unitutor/pagetutor/pkg/models"
)

// explainTemplate asks the model to act as a teacher and return a JSON object
// so the summary can seed later pages and chat context.
const explainTemplate = `You are an experienced teacher analyzing one page of course material.

Cover the following:
1. The main topic of this page.
2. The key concepts, definitions, and terms, each briefly explained.
3. Any formulas, charts, or diagrams and what they mean.
4. The parts a student is most likely to find difficult.
5. A concise recap of the page.

Respond with a single JSON object:
{"content": "<the full explanation in Markdown>", "summary": "<one or two sentences>"}`

// BuildExplainPrompt returns the analysis prompt for a page, optionally
// carrying summaries of previously explained pages for continuity.
func BuildExplainPrompt(page int, previousSummaries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Page %d]\n\n%s", page, explainTemplate)
	if len(previousSummaries) > 0 {
		b.WriteString("\n\nSummaries of the preceding pages:\n")
		for _, s := range previousSummaries {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// BuildChatPrompt assembles a single prompt from the page's cached
// explanation, the caller-supplied history, and the new question. History is
// owned by the caller; nothing is persisted server-side.
func BuildChatPrompt(explanation string, history []models.ChatMessage, question string) string {
	var b strings.Builder
	b.WriteString("You are a patient tutor helping a student understand course material.\n")
	if explanation != "" {
		b.WriteString("\nExplanation of the page under discussion:\n")
		b.WriteString(explanation)
		b.WriteByte('\n')
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, msg := range history {
			role := "Student"
			if msg.Role == "assistant" {
				role = "Tutor"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
		}
	}
	fmt.Fprintf(&b, "\nStudent: %s\nTutor:", question)
	return b.String()
}
