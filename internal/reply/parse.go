// Package reply extracts structured annotations from model replies.
package reply

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	caloriesTag = regexp.MustCompile(`(?i)\[\s*CALORIES\s*:\s*(\d+)\s*\]`)
	foodTag     = regexp.MustCompile(`(?i)\[\s*FOOD\s*:\s*([^\]]*?)\s*\]`)
)

// Parsed is a model reply with its annotation tags removed.
type Parsed struct {
	Text     string
	Calories *int
	Food     string
}

// Parse extracts the first calorie tag and the first food tag from raw,
// strips every occurrence of both, and trims surrounding whitespace.
// Calories is nil when no tag is present or its value does not fit an int.
// A food tag is stripped even when no calorie tag matched; the rest of the
// text is only trimmed.
func Parse(raw string) Parsed {
	var p Parsed

	if m := caloriesTag.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p.Calories = &n
		}
	}
	if m := foodTag.FindStringSubmatch(raw); m != nil {
		p.Food = m[1]
	}

	text := caloriesTag.ReplaceAllString(raw, "")
	text = foodTag.ReplaceAllString(text, "")
	p.Text = strings.TrimSpace(text)
	return p
}
