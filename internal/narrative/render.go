package narrative

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Render renders the blocks as terminal-formatted markdown, one slide after the other.
func Render(blocks []Block, wordWrap int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return "", fmt.Errorf("could not create terminal renderer: %v", err)
	}

	var sb strings.Builder
	for i, b := range blocks {
		out, err := r.Render(slideMarkdown(i, b))
		if err != nil {
			return "", fmt.Errorf("could not render slide %d: %v", i, err)
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

func slideMarkdown(i int, b Block) string {
	var sb strings.Builder
	sb.WriteString(b.Markdown)
	sb.WriteString("\n\n")

	ds := "/" + b.Dataset
	if b.Query != "" {
		ds += "?" + b.Query
	}
	fmt.Fprintf(&sb, "> slide %d: `%s`\n", i, ds)

	if b.MainDisplayMarkdown != "" {
		sb.WriteString("\n---\n\n")
		sb.WriteString(b.MainDisplayMarkdown)
		sb.WriteString("\n")
	}
	return sb.String()
}
