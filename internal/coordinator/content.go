package coordinator

import (
	"strings"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
)

type contentFormat string

const (
	formatHTML     contentFormat = "html"
	formatMarkdown contentFormat = "markdown"
)

// selectContent picks the single supplied body. Blank means empty after
// trimming; the returned content itself is not trimmed.
func selectContent(html, markdown string) (contentFormat, string, error) {
	hasHTML := strings.TrimSpace(html) != ""
	hasMarkdown := strings.TrimSpace(markdown) != ""
	switch {
	case hasHTML && hasMarkdown:
		return "", "", bookstack.NewValidationError("Provide either html or markdown content, not both")
	case hasMarkdown:
		return formatMarkdown, markdown, nil
	case hasHTML:
		return formatHTML, html, nil
	default:
		return "", "", bookstack.NewValidationError("Either html or markdown content is required")
	}
}

// normalizeTags trims names and drops tags without one. The result is never
// nil so payloads always carry a tags array.
func normalizeTags(in []TagInput) []bookstack.Tag {
	out := make([]bookstack.Tag, 0, len(in))
	for _, tag := range in {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			continue
		}
		out = append(out, bookstack.Tag{Name: name, Value: tag.Value})
	}
	return out
}

// mergeTags appends additions whose name/value pair is not present yet.
func mergeTags(existing, additions []bookstack.Tag) []bookstack.Tag {
	type pair struct{ name, value string }

	merged := make([]bookstack.Tag, 0, len(existing)+len(additions))
	seen := make(map[pair]struct{}, len(existing)+len(additions))
	for _, tag := range existing {
		merged = append(merged, bookstack.Tag{Name: tag.Name, Value: tag.Value})
		seen[pair{tag.Name, tag.Value}] = struct{}{}
	}
	for _, tag := range additions {
		key := pair{tag.Name, tag.Value}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, tag)
	}
	return merged
}

// mergeMarkdown separates the addition from the existing body by one blank
// line.
func mergeMarkdown(existing, addition string) string {
	existing = strings.TrimRight(existing, "\r\n")
	if existing == "" {
		return addition
	}
	return existing + "\n\n" + addition
}

func mergeHTML(existing, addition string) string {
	return existing + addition
}

func appendBookID(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
