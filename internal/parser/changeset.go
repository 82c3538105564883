// Package parser extracts structured data from free-form model output and
// markdown documents.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/changegate/model"
)

var (
	// ErrNoChangeSet means the text holds no JSON object to decode.
	ErrNoChangeSet = errors.New("No structured changes JSON found in output")
	// ErrMissingChanges means the decoded object has no "changes" key.
	ErrMissingChanges = errors.New("JSON missing 'changes' key")
)

// ParseChangeSet finds the change-set JSON in text and decodes it. Failures
// are returned as the {"error": ...} sentinel so validation rejects them.
func ParseChangeSet(text string) model.RawChangeSet {
	raw, err := DecodeChangeSet(text)
	if err != nil {
		return model.ErrorSet(err.Error())
	}
	return raw
}

// DecodeChangeSet is ParseChangeSet with the failure as an error. It prefers
// the first json (or untagged) fenced block holding an object, then falls
// back to the outermost object around the first "changes" key.
func DecodeChangeSet(text string) (model.RawChangeSet, error) {
	candidate, ok := fencedObject(text)
	if !ok {
		return bareObject(text)
	}

	var raw model.RawChangeSet
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, fmt.Errorf("Invalid JSON: %w", err)
	}
	if _, ok := raw["changes"]; !ok {
		return nil, ErrMissingChanges
	}
	return raw, nil
}

func fencedObject(text string) (string, bool) {
	blocks, err := ExtractCodeBlocks([]byte(text))
	if err != nil {
		return "", false
	}
	for _, b := range blocks {
		if b.Lang != "json" && b.Lang != "" {
			continue
		}
		if content := strings.TrimSpace(b.Content); strings.HasPrefix(content, "{") {
			return content, true
		}
	}
	return "", false
}

// bareObject decodes the first object that starts before the first
// "changes" key and contains it. Trailing prose after the object is ignored.
func bareObject(text string) (model.RawChangeSet, error) {
	key := strings.Index(text, `"changes"`)
	if key < 0 {
		return nil, ErrNoChangeSet
	}

	var lastErr error
	for i := 0; i < key; i++ {
		if text[i] != '{' {
			continue
		}
		var raw model.RawChangeSet
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			lastErr = err
			continue
		}
		if _, ok := raw["changes"]; ok {
			return raw, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("Invalid JSON: %w", lastErr)
	}
	return nil, ErrNoChangeSet
}
