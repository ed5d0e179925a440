package digest

import (
	"fmt"
	"strings"

	"news-digest/internal/corpus"
)

const (
	summaryInstruction = "Considerati più titoli e contenuti degli articoli, riassumili e integrali in un unico testo.\nInput: "
	documentTemplate   = "Title: %s \n Content: %s\n"
)

// BuildInput concatenates the members under the per-document template, in member order.
// Every section starts with the "Title:" marker the summary client splits on.
func BuildInput(members []corpus.Document) string {
	var sb strings.Builder
	for _, d := range members {
		fmt.Fprintf(&sb, documentTemplate, d.TitleText(), d.ContentText())
	}
	return sb.String()
}

// BuildPrompt wraps the combined input in the summary instruction.
func BuildPrompt(input, language string) string {
	return summaryInstruction + input + "\nOutput Summary in " + language + ": "
}
