package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// maxLineCapacity bounds a single JSONL line (news bodies can be long).
const maxLineCapacity = 4 * 1024 * 1024

// JSONLSource reads one document per line. Positions follow line order, blank lines skipped.
type JSONLSource struct {
	Path string
}

func NewJSONLSource(path string) *JSONLSource {
	return &JSONLSource{Path: path}
}

func (s *JSONLSource) Load(ctx context.Context) ([]Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineCapacity)

	var docs []Document
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("parsing corpus line %d: %w", lineNum, err)
		}
		doc.Index = len(docs)
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}
	return docs, nil
}
