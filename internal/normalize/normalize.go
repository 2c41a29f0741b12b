// Package normalize extracts structured records from loosely formatted
// generator output. The generator is asked for JSON but may wrap it in code
// fences or surround it with commentary.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bobby-s-dev/species-archive/internal/models"
)

// ErrMalformed reports output that could not be read as the expected shape
// even after tolerant extraction.
var ErrMalformed = errors.New("could not understand the archive response")

var fenceMarkers = []string{"```json", "```JSON", "```"}

// ExtractJSON strips fence markers and slices the text down to the span
// between the earliest opening brace or bracket and the latest closing one.
func ExtractJSON(raw string) (string, error) {
	cleaned, start, end := locate(raw)
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON container found", ErrMalformed)
	}
	return cleaned[start : end+1], nil
}

// payload returns the JSON text to decode. When the outer span is not valid
// JSON, usually because trailing commentary itself contains a brace, the
// first complete value from the opening position is used instead.
func payload(raw string) (string, error) {
	span, err := ExtractJSON(raw)
	if err != nil {
		return "", err
	}
	if json.Valid([]byte(span)) {
		return span, nil
	}

	cleaned, start, _ := locate(raw)
	var first json.RawMessage
	if err := json.NewDecoder(strings.NewReader(cleaned[start:])).Decode(&first); err == nil {
		return string(first), nil
	}
	return span, nil
}

func locate(raw string) (cleaned string, start, end int) {
	cleaned = raw
	for _, marker := range fenceMarkers {
		cleaned = strings.ReplaceAll(cleaned, marker, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	start = earliest(strings.Index(cleaned, "{"), strings.Index(cleaned, "["))
	end = max(strings.LastIndex(cleaned, "}"), strings.LastIndex(cleaned, "]"))
	return cleaned, start, end
}

// ExtractRecord parses one species record. A top-level array yields its first
// object. Enrichment fields are never taken from the generator.
func ExtractRecord(raw string) (*models.SpeciesRecord, error) {
	text, err := payload(raw)
	if err != nil {
		return nil, err
	}

	entry := json.RawMessage(text)
	if strings.HasPrefix(text, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: empty list", ErrMalformed)
		}
		entry = list[0]
	}

	record, err := decodeRecord(entry)
	if err != nil {
		return nil, err
	}
	if !record.HasIdentity() {
		return nil, fmt.Errorf("%w: record has no name", ErrMalformed)
	}
	return record, nil
}

// ExtractList parses a list of name stubs from either a bare array or an
// object holding the array under "items" or "species".
func ExtractList(raw string) ([]models.RelatedSpeciesStub, error) {
	var stubs []models.RelatedSpeciesStub
	if err := extractItems(raw, &stubs); err != nil {
		return nil, err
	}

	out := stubs[:0]
	for _, s := range stubs {
		s.CommonName = strings.TrimSpace(s.CommonName)
		s.ScientificName = strings.TrimSpace(s.ScientificName)
		s.ImageURL = ""
		if s.CommonName == "" && s.ScientificName == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ExtractFeatured parses reduced-field featured records using the same
// container rules as ExtractList. Entries that are not objects or have no
// name are skipped.
func ExtractFeatured(raw string) ([]models.SpeciesRecord, error) {
	var entries []json.RawMessage
	if err := extractItems(raw, &entries); err != nil {
		return nil, err
	}

	out := make([]models.SpeciesRecord, 0, len(entries))
	for _, e := range entries {
		r, err := decodeRecord(e)
		if err != nil || !r.HasIdentity() {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func extractItems(raw string, dst any) error {
	text, err := payload(raw)
	if err != nil {
		return err
	}

	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), dst); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil
	}

	var wrapper struct {
		Items   json.RawMessage `json:"items"`
		Species json.RawMessage `json:"species"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	list := wrapper.Items
	if len(list) == 0 || string(list) == "null" {
		list = wrapper.Species
	}
	if len(list) == 0 || string(list) == "null" {
		return fmt.Errorf("%w: no items array", ErrMalformed)
	}
	if err := json.Unmarshal(list, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// identity holds the fields that must be real strings for a record to count.
type identity struct {
	CommonName     string `json:"commonName"`
	ScientificName string `json:"scientificName"`
	Kingdom        string `json:"kingdom"`
	Family         string `json:"family"`
}

// decodeRecord builds a record from one generated object. Identity fields are
// strict; narrative fields accept any JSON value and keep it as display text.
// Anything else the generator emits is ignored.
func decodeRecord(data json.RawMessage) (*models.SpeciesRecord, error) {
	var id identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var fields map[string]lenientText
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	text := make(map[string]string, len(fields))
	for k, v := range fields {
		text[k] = strings.TrimSpace(string(v))
	}

	var narrative models.Narrative
	encoded, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(encoded, &narrative); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &models.SpeciesRecord{
		CommonName:     strings.TrimSpace(id.CommonName),
		ScientificName: strings.TrimSpace(id.ScientificName),
		Kingdom:        strings.TrimSpace(id.Kingdom),
		Family:         strings.TrimSpace(id.Family),
		Narrative:      narrative,
	}, nil
}

// lenientText decodes any JSON value into display text. Strings are kept,
// numbers and booleans keep their literal form, objects and arrays are kept
// as compact JSON and null becomes empty.
type lenientText string

func (t *lenientText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = lenientText(s)
	case b[0] == '{' || b[0] == '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*t = lenientText(buf.String())
	default:
		*t = lenientText(b)
	}
	return nil
}

func earliest(a, b int) int {
	switch {
	case a == -1:
		return b
	case b == -1:
		return a
	default:
		return min(a, b)
	}
}
