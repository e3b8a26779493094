// Package book defines in-memory e-book model package documents are written
// from, and loading of book descriptions.
package book

import (
	"time"
)

// QName identifies extension metadata element. Prefix is only a hint used
// when Space is not bound in the document yet.
type QName struct {
	Space  string
	Local  string
	Prefix string
}

// Property is a single extension metadata entry.
type Property struct {
	Name  QName
	Value string
}

type Author struct {
	FirstName string
	LastName  string
}

// FileAs returns name in "last, first" form used for sorting.
func (a Author) FileAs() string {
	return a.LastName + ", " + a.FirstName
}

// DisplayName returns name as it should be presented to reader.
func (a Author) DisplayName() string {
	return a.FirstName + " " + a.LastName
}

// Resource is a single file registered in the manifest.
type Resource struct {
	ID        string
	Href      string
	MediaType string
}

// Section is a node of the book reading tree. Children are owned by their
// parent.
type Section struct {
	ItemID   string
	PageFlow bool
	Children []Section
}

// Book is the root aggregate. Writers only read it.
type Book struct {
	UID        string
	Title      string
	Authors    []Author
	Subjects   []string
	Date       time.Time
	Language   string
	Rights     string
	Properties []Property
	Resources  []Resource
	Sections   []Section
}

// Walk visits sections in pre-order (document order), stopping on first
// error returned by fn.
func Walk(sections []Section, fn func(s *Section) error) error {
	for i := range sections {
		if err := fn(&sections[i]); err != nil {
			return err
		}
		if err := Walk(sections[i].Children, fn); err != nil {
			return err
		}
	}
	return nil
}

// ReadingOrder returns item ids of page flow sections in document order.
func (b *Book) ReadingOrder() []string {
	var ids []string
	_ = Walk(b.Sections, func(s *Section) error {
		if s.PageFlow {
			ids = append(ids, s.ItemID)
		}
		return nil
	})
	return ids
}
