// Package repair recovers a JSON array of objects from raw model output.
//
// Models wrap the array in commentary and make a few recurring syntax
// mistakes. Repair extracts the outermost array and applies a closed, ordered
// list of textual rules. Rules can mask real structural errors, so the list
// only covers mistakes seen in model output. Repair never invents fields or
// values.
package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Rule is one named textual fix.
type Rule struct {
	Name        string
	Description string
	pattern     *regexp.Regexp
	replacement string
}

// Apply runs the rule over s.
func (r Rule) Apply(s string) string {
	return r.pattern.ReplaceAllString(s, r.replacement)
}

var (
	// JoinAdjacentObjects turns `}{` or `} \n {` into `},{`.
	JoinAdjacentObjects = Rule{
		Name:        "join-adjacent-objects",
		Description: "insert a comma between two object literals with no separator",
		pattern:     regexp.MustCompile(`\}\s*\{`),
		replacement: "},{",
	}

	// TrimKeyWhitespace turns `" day_number ":` into `"day_number":`.
	TrimKeyWhitespace = Rule{
		Name:        "trim-key-whitespace",
		Description: "remove stray whitespace inside quoted keys",
		pattern:     regexp.MustCompile(`"\s*([A-Za-z_][A-Za-z0-9_]*)\s*"\s*:`),
		replacement: `"$1":`,
	}

	// DropTrailingComma turns `,}` and `, ]` into `}` and `]`.
	DropTrailingComma = Rule{
		Name:        "drop-trailing-comma",
		Description: "remove a comma directly before a closing brace or bracket",
		pattern:     regexp.MustCompile(`,\s*([\]}])`),
		replacement: "$1",
	}
)

// Rules is the ordered rule list applied by Repair.
//
// Rules match raw text and do not track string boundaries, so a string value
// that contains `}{` or a comma before `]` or `}` is rewritten as well:
// `"x}{y"` becomes `"x},{y"` and `"a,]"` becomes `"a]"`.
var Rules = []Rule{JoinAdjacentObjects, TrimKeyWhitespace, DropTrailingComma}

// ErrNoArray is returned when the text has no `[` ... `]` span.
var ErrNoArray = errors.New("no JSON array found")

// MalformedError carries the text before and after repair for diagnostics.
type MalformedError struct {
	Raw      string
	Repaired string
	Err      error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed generation response: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Result is a successfully repaired document.
type Result struct {
	// Repaired is the text that parsed.
	Repaired string
	// Applied lists the rules that changed the text, in order.
	Applied []string
	// Objects is the decoded array. Numbers are json.Number.
	Objects []map[string]any
}

// Extract returns the substring between the first `[` and the last `]`.
func Extract(raw string) (string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoArray
	}
	return raw[start : end+1], nil
}

// Repair extracts the array from raw, applies Rules and decodes the result.
func Repair(raw string) (*Result, error) {
	text, err := Extract(raw)
	if err != nil {
		return nil, &MalformedError{Raw: raw, Err: err}
	}

	res := &Result{}
	for _, r := range Rules {
		fixed := r.Apply(text)
		if fixed != text {
			res.Applied = append(res.Applied, r.Name)
			text = fixed
		}
	}
	res.Repaired = text

	objects, err := decodeArray(text)
	if err != nil {
		return nil, &MalformedError{Raw: raw, Repaired: text, Err: err}
	}
	res.Objects = objects
	return res, nil
}

// decodeArray requires exactly one JSON array whose elements are all objects.
func decodeArray(text string) ([]map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("parsing repaired text: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after array")
	}

	objects := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
