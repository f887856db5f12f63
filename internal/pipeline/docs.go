package pipeline

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// LoadDocuments reads plain-text or markdown files into documents, splitting
// markdown headings into sections. Empty files are an input error.
func LoadDocuments(paths []string) ([]model.Document, error) {
	if len(paths) == 0 {
		return nil, eris.New("pipeline: no document paths provided")
	}

	docs := make([]model.Document, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: read document %s", path)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return nil, eris.Errorf("pipeline: document %s is empty", path)
		}
		docs = append(docs, model.Document{
			ID:       uuid.New().String(),
			Filename: path,
			Text:     text,
			Sections: splitSections(text),
		})
	}
	return docs, nil
}

// splitSections divides markdown text on top-level and second-level
// headings. Text before the first heading becomes an untitled section.
func splitSections(text string) []model.Section {
	lines := strings.Split(text, "\n")

	var sections []model.Section
	current := model.Section{}
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" || current.Title != "" {
			current.Text = content
			sections = append(sections, current)
		}
		body = body[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			flush()
			current = model.Section{Title: strings.TrimLeft(trimmed, "# ")}
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(sections) <= 1 {
		return nil
	}
	return sections
}
