package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownField = errors.New("unknown cluster text field")

// Document is an immutable corpus entry. Title and Content are nil when the source had no value.
type Document struct {
	Index   int     `json:"-"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Date    string  `json:"date"`
	Tags    Tags    `json:"tags"`
}

// Tags accepts either a JSON array of strings or a single string.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*t = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if single == "" {
			*t = nil
			return nil
		}
		*t = Tags{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings: %w", err)
	}
	*t = many
	return nil
}

// Complete reports whether both title and content are present.
func (d Document) Complete() bool {
	return d.Title != nil && d.Content != nil
}

// TitleText returns the title or "" when missing.
func (d Document) TitleText() string {
	if d.Title == nil {
		return ""
	}
	return *d.Title
}

// ContentText returns the content or "" when missing.
func (d Document) ContentText() string {
	if d.Content == nil {
		return ""
	}
	return *d.Content
}

// Field selects which part of a document is embedded for clustering.
type Field string

const (
	FieldBoth    Field = "both"
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldBoth, FieldTitle, FieldContent:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
}

// Text returns the clustering text for a document, or "" when the selected part is missing.
func (d Document) Text(field Field) string {
	switch field {
	case FieldTitle:
		return d.TitleText()
	case FieldContent:
		return d.ContentText()
	default:
		if !d.Complete() {
			return ""
		}
		return d.TitleText() + " " + d.ContentText()
	}
}

// ClusterTexts returns one clustering text per document, aligned with docs.
// Documents that cannot be summarized get "" in every field mode so they never join a cluster.
func ClusterTexts(docs []Document, field Field) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		if !d.Complete() {
			continue
		}
		texts[i] = d.Text(field)
	}
	return texts
}

// Source supplies the ordered corpus for a run.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// StringPtr is a small helper for building documents in code.
func StringPtr(s string) *string {
	return &s
}
