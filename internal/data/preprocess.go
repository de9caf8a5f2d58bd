package data

import (
	"regexp"
	"strings"
)

// maxModelChars caps the text handed to the sentiment model.
const maxModelChars = 512

var urlPattern = regexp.MustCompile(`https?://\S+`)

// CleanText prepares a snippet for classification: links carry no sentiment
// and the model input length is bounded.
func CleanText(raw string) string {
	clean := urlPattern.ReplaceAllString(raw, "")
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > maxModelChars {
		clean = strings.TrimSpace(clean[:maxModelChars])
	}
	return clean
}
