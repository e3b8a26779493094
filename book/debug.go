package book

import (
	"fmt"
	"strconv"
	"strings"
)

type treeWriter struct {
	w *strings.Builder
}

func (tw treeWriter) line(depth int, format string, args ...any) {
	for range depth {
		tw.w.WriteString("  ")
	}
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw treeWriter) text(depth int, label, value string) {
	if len(value) == 0 {
		return
	}
	tw.line(depth, "%s: %s", label, strconv.Quote(value))
}

// String dumps book structure for debugging.
func (b *Book) String() string {
	tw := treeWriter{w: &strings.Builder{}}

	tw.line(0, "Book")
	tw.text(1, "UID", b.UID)
	tw.text(1, "Title", b.Title)
	for _, a := range b.Authors {
		tw.text(1, "Author", a.DisplayName())
	}
	for _, s := range b.Subjects {
		tw.text(1, "Subject", s)
	}
	if !b.Date.IsZero() {
		tw.line(1, "Date: %s", b.Date.Format(DateLayout))
	}
	tw.text(1, "Language", b.Language)
	tw.text(1, "Rights", b.Rights)
	for _, p := range b.Properties {
		tw.line(1, "Property {%s}%s: %s", p.Name.Space, p.Name.Local, strconv.Quote(p.Value))
	}

	tw.line(1, "Resources: %d", len(b.Resources))
	for _, r := range b.Resources {
		tw.line(2, "%s -> %s (%s)", r.ID, r.Href, r.MediaType)
	}

	tw.line(1, "Sections")
	dumpSections(tw, 2, b.Sections)
	return tw.w.String()
}

func dumpSections(tw treeWriter, depth int, sections []Section) {
	for _, s := range sections {
		if s.PageFlow {
			tw.line(depth, "%s", s.ItemID)
		} else {
			tw.line(depth, "%s (not in flow)", s.ItemID)
		}
		dumpSections(tw, depth+1, s.Children)
	}
}
