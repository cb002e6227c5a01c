package outline

import (
	"regexp"
	"strings"
)

var pageMarker = regexp.MustCompile(`(?i)\s*<page>\s*`)

var typeTags = map[string]PageType{
	"[cover]":   PageCover,
	"[封面]":      PageCover,
	"[content]": PageContent,
	"[内容]":      PageContent,
	"[summary]": PageSummary,
	"[总结]":      PageSummary,
}

// Parse splits raw outline text on the <page> marker into pages. Empty chunks
// are dropped. A leading type tag such as [cover] or [总结] sets the type;
// otherwise the first page is a cover, the last of two or more is a summary
// and everything in between is content.
func Parse(raw string) []Page {
	var chunks []string
	for _, c := range pageMarker.Split(raw, -1) {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}

	pages := make([]Page, 0, len(chunks))
	for i, c := range chunks {
		pages = append(pages, Page{
			Index:   i,
			Type:    inferType(c, i, len(chunks)),
			Content: c,
		})
	}
	return pages
}

func inferType(chunk string, pos, total int) PageType {
	lower := strings.ToLower(chunk)
	for tag, t := range typeTags {
		if strings.HasPrefix(lower, tag) {
			return t
		}
	}
	switch {
	case pos == 0:
		return PageCover
	case pos == total-1:
		return PageSummary
	default:
		return PageContent
	}
}
