package outline

import "strings"

// PageBreak separates page contents in the raw outline text.
const PageBreak = "\n\n<page>\n\n"

// PageType is the role of a page within the outline.
type PageType string

const (
	PageCover   PageType = "cover"
	PageContent PageType = "content"
	PageSummary PageType = "summary"
)

// Valid reports whether t is one of the known page types.
func (t PageType) Valid() bool {
	switch t {
	case PageCover, PageContent, PageSummary:
		return true
	}
	return false
}

// Page is one outline item. Index always equals the page's position.
type Page struct {
	Index   int      `json:"index"`
	Type    PageType `json:"type"`
	Content string   `json:"content"`
}

// Outline holds the ordered pages and the raw text derived from them.
// Raw is rebuilt after every mutation and must not be edited directly.
type Outline struct {
	Raw   string `json:"raw"`
	Pages []Page `json:"pages"`
}

// Len returns the number of pages.
func (o *Outline) Len() int {
	return len(o.Pages)
}

// Append adds a page at the end.
func (o *Outline) Append(t PageType, content string) {
	o.Pages = append(o.Pages, Page{Type: t, Content: content})
	o.sync()
}

// InsertAfter places a new page at position afterIndex+1. An afterIndex of -1
// inserts at the front; values outside [-1, len-1] are clamped.
func (o *Outline) InsertAfter(afterIndex int, t PageType, content string) {
	at := clamp(afterIndex, -1, len(o.Pages)-1) + 1
	o.Pages = append(o.Pages, Page{})
	copy(o.Pages[at+1:], o.Pages[at:])
	o.Pages[at] = Page{Type: t, Content: content}
	o.sync()
}

// Remove deletes the page whose Index equals index. It reports false when no
// such page exists.
func (o *Outline) Remove(index int) bool {
	pos := o.find(index)
	if pos < 0 {
		return false
	}
	o.Pages = append(o.Pages[:pos], o.Pages[pos+1:]...)
	o.sync()
	return true
}

// Move removes the page at position from and reinserts it at position to of
// the resulting sequence. An out-of-range from is a no-op; to is clamped.
func (o *Outline) Move(from, to int) bool {
	if from < 0 || from >= len(o.Pages) {
		return false
	}
	to = clamp(to, 0, len(o.Pages)-1)
	moved := o.Pages[from]
	pages := append(o.Pages[:from:from], o.Pages[from+1:]...)
	pages = append(pages, Page{})
	copy(pages[to+1:], pages[to:])
	pages[to] = moved
	o.Pages = pages
	o.sync()
	return true
}

// Update replaces the content of the page whose Index equals index.
func (o *Outline) Update(index int, content string) bool {
	pos := o.find(index)
	if pos < 0 {
		return false
	}
	o.Pages[pos].Content = content
	o.sync()
	return true
}

// Replace swaps the whole page list for a copy of pages.
func (o *Outline) Replace(pages []Page) {
	o.Pages = append([]Page(nil), pages...)
	o.sync()
}

// Page returns the page with the given index.
func (o *Outline) Page(index int) (Page, bool) {
	pos := o.find(index)
	if pos < 0 {
		return Page{}, false
	}
	return o.Pages[pos], true
}

// Clone returns a deep copy.
func (o *Outline) Clone() Outline {
	pages := make([]Page, len(o.Pages))
	copy(pages, o.Pages)
	return Outline{Raw: o.Raw, Pages: pages}
}

// Join concatenates page contents with PageBreak, in order.
func Join(pages []Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Content
	}
	return strings.Join(parts, PageBreak)
}

// sync reindexes pages and rebuilds the raw text.
func (o *Outline) sync() {
	for i := range o.Pages {
		o.Pages[i].Index = i
	}
	o.Raw = Join(o.Pages)
}

func (o *Outline) find(index int) int {
	for i, p := range o.Pages {
		if p.Index == index {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
