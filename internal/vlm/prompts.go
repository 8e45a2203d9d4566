package vlm

import (
	"fmt"
	"strings"
)

// TaskKind selects the prompt family and generation parameters.
type TaskKind string

const (
	TaskExtract TaskKind = "extract" // plain text extraction, low randomness
	TaskCompose TaskKind = "compose" // tone-aware structured note composition
)

// Task describes one multimodal request.
type Task struct {
	Kind           TaskKind
	Tone           string
	PreserveLayout bool
	ExtractTables  bool
}

const extractPrompt = `Extract all text from the provided page image(s).
Return the text exactly as it appears, preserving line breaks and reading order.
Do not add commentary, translations or explanations.
If a region is unreadable, write [unreadable] in its place.`

const extractPromptReduced = `Extract all text from the image(s). Text only, no commentary.`

var toneInstructions = map[string]string{
	"professional": "Use precise, formal wording suitable for work or study notes.",
	"casual":       "Use relaxed, conversational wording.",
	"simplified":   "Use short sentences and plain words; simplify complex phrasing.",
}

// BuildPrompt renders the task prompt sent alongside the images.
func BuildPrompt(task Task) string {
	if task.Kind == TaskExtract {
		var b strings.Builder
		b.WriteString(extractPrompt)
		if task.PreserveLayout {
			b.WriteString("\nPreserve the original layout: keep indentation and column ordering.")
		}
		if task.ExtractTables {
			b.WriteString("\nRender any tables as markdown tables.")
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString("Compose a clean, structured note in markdown from the provided page image(s).\n")
	b.WriteString("Start with a single level-1 heading that titles the note.\n")
	b.WriteString("Use headings, bullet lists and paragraphs to organise the content.\n")
	if instruction, ok := toneInstructions[task.Tone]; ok {
		b.WriteString(instruction)
		b.WriteString("\n")
	}
	if task.ExtractTables {
		b.WriteString("Render any tabular content as markdown tables.\n")
	}
	b.WriteString("Return only the note itself, without surrounding commentary or code fences.")
	return b.String()
}

// BuildReducedPrompt renders the shorter prompt used for the reduced-scope
// retry after an empty response.
func BuildReducedPrompt(task Task) string {
	if task.Kind == TaskExtract {
		return extractPromptReduced
	}
	return fmt.Sprintf("Write a short structured markdown note from the image(s). Start with a heading. Tone: %s.", task.Tone)
}
