package prompt

import (
	"strings"
	"unicode/utf8"
)

// Status reports whether the draft matches the last saved text.
type Status string

const (
	StatusSaved    Status = "Saved"
	StatusModified Status = "Modified"
)

// Stats summarises a prompt for the preview panel.
type Stats struct {
	Characters int    `json:"characters"`
	Words      int    `json:"words"`
	Lines      int    `json:"lines"`
	Status     Status `json:"status"`
}

// Measure computes statistics for text. An empty text counts as one line.
func Measure(text string, modified bool) Stats {
	status := StatusSaved
	if modified {
		status = StatusModified
	}
	return Stats{
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
		Lines:      strings.Count(text, "\n") + 1,
		Status:     status,
	}
}
