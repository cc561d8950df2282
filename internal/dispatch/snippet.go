package dispatch

import (
	"strings"

	"waveline.io/courier/internal/domain"
)

const (
	snippetMaxSummaries = 3
	snippetMaxLen       = 90
	snippetEllipsis     = " ..."
)

// snippet builds the one-line email preview: the first three summaries joined
// with ", ", truncated at a word boundary to 90 characters with " ..."
// appended when anything was cut.
func snippet(views []domain.EmailViewModel) string {
	n := len(views)
	if n > snippetMaxSummaries {
		n = snippetMaxSummaries
	}
	parts := make([]string, 0, n)
	for _, v := range views[:n] {
		parts = append(parts, v.Summary)
	}
	joined := strings.Join(parts, ", ")
	if len(joined) <= snippetMaxLen {
		return joined
	}
	return truncateAtWord(joined, snippetMaxLen) + snippetEllipsis
}

// truncateAtWord cuts s to at most max bytes without splitting a word.
func truncateAtWord(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,")
}
