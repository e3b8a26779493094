// Package opf writes OPF 2.0 package documents: book metadata, manifest of
// all book files and spine defining linear reading order.
package opf

import (
	"fmt"

	"go.uber.org/zap"

	"opfgen/book"
	"opfgen/xmlw"
)

const (
	NamespaceOPF = "http://www.idpf.org/2007/opf"
	NamespaceDC  = "http://purl.org/dc/elements/1.1/"

	PrefixDC  = "dc"
	PrefixOPF = "opf"

	XMLVersion      = "1.0"
	DefaultEncoding = "UTF-8"
	Version         = "2.0"

	// UniqueIdentifier is value of package unique-identifier attribute.
	UniqueIdentifier = "BookID"
	// IdentifierID is id of dc:identifier element. It does not match
	// UniqueIdentifier, this is what existing readers were given so far.
	// TODO: switch to UniqueIdentifier once reader compatibility is confirmed.
	IdentifierID     = "BookdID"
	IdentifierScheme = "UUID"
	CreatorRole      = "aut"
	DateLayout       = "2006-01-02"
)

// Navigation describes navigation control document. It is always the first
// manifest entry and is referenced by spine toc attribute.
type Navigation struct {
	ID        string
	Href      string
	MediaType string
}

// DefaultNavigation describes NCX document at its usual location.
var DefaultNavigation = Navigation{
	ID:        "ncx",
	Href:      "toc.ncx",
	MediaType: "application/x-dtbncx+xml",
}

// Write produces complete package document for the book in a single pass.
// Book is expected to be consistent, nothing is validated here. On error
// output is left in undefined state and must be discarded. Empty encoding
// means UTF-8.
func Write(w xmlw.Writer, b *book.Book, nav Navigation, encoding string, log *zap.Logger) error {
	if len(encoding) == 0 {
		encoding = DefaultEncoding
	}
	if err := w.StartDocument(encoding, XMLVersion); err != nil {
		return fmt.Errorf("unable to start document: %w", err)
	}
	if err := writePackage(w); err != nil {
		return fmt.Errorf("unable to write package element: %w", err)
	}
	if err := writeMetadata(w, b); err != nil {
		return fmt.Errorf("unable to write metadata: %w", err)
	}
	if err := writeManifest(w, b.Resources, nav); err != nil {
		return fmt.Errorf("unable to write manifest: %w", err)
	}
	refs, err := writeSpine(w, b.Sections, nav.ID)
	if err != nil {
		return fmt.Errorf("unable to write spine: %w", err)
	}
	if err := w.EndElement(); err != nil {
		return fmt.Errorf("unable to close package element: %w", err)
	}
	if err := w.EndDocument(); err != nil {
		return fmt.Errorf("unable to finish document: %w", err)
	}

	log.Debug("Package document written",
		zap.String("uid", b.UID),
		zap.Int("manifest", len(b.Resources)+1),
		zap.Int("spine", refs))
	return nil
}

func writePackage(w xmlw.Writer) error {
	if err := w.StartElement(NamespaceOPF, "package"); err != nil {
		return err
	}
	if err := w.DefaultNamespace(NamespaceOPF); err != nil {
		return err
	}
	if err := w.Namespace(PrefixDC, NamespaceDC); err != nil {
		return err
	}
	if err := w.Attr("version", Version); err != nil {
		return err
	}
	return w.Attr("unique-identifier", UniqueIdentifier)
}

func writeManifest(w xmlw.Writer, resources []book.Resource, nav Navigation) error {
	if err := w.StartElement(NamespaceOPF, "manifest"); err != nil {
		return err
	}
	if err := writeItem(w, nav.ID, nav.Href, nav.MediaType); err != nil {
		return err
	}
	for _, r := range resources {
		if err := writeItem(w, r.ID, r.Href, r.MediaType); err != nil {
			return fmt.Errorf("resource %q: %w", r.ID, err)
		}
	}
	return w.EndElement()
}

func writeItem(w xmlw.Writer, id, href, mediaType string) error {
	if err := w.EmptyElement(NamespaceOPF, "item"); err != nil {
		return err
	}
	if err := w.Attr("id", id); err != nil {
		return err
	}
	if err := w.Attr("href", href); err != nil {
		return err
	}
	return w.Attr("media-type", mediaType)
}

func writeSpine(w xmlw.Writer, sections []book.Section, tocID string) (int, error) {
	if err := w.StartElement(NamespaceOPF, "spine"); err != nil {
		return 0, err
	}
	if err := w.Attr("toc", tocID); err != nil {
		return 0, err
	}
	refs, err := writeSections(w, sections)
	if err != nil {
		return refs, err
	}
	return refs, w.EndElement()
}

// writeSections flattens section forest in pre-order, every page flow
// section produces itemref. Children are visited regardless of their
// parent flag.
func writeSections(w xmlw.Writer, sections []book.Section) (int, error) {
	var refs int
	for i := range sections {
		s := &sections[i]
		if s.PageFlow {
			if err := w.EmptyElement(NamespaceOPF, "itemref"); err != nil {
				return refs, err
			}
			if err := w.Attr("idref", s.ItemID); err != nil {
				return refs, err
			}
			refs++
		}
		n, err := writeSections(w, s.Children)
		refs += n
		if err != nil {
			return refs, err
		}
	}
	return refs, nil
}
