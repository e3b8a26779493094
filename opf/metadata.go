package opf

import (
	"opfgen/book"
	"opfgen/xmlw"
)

// writeMetadata emits Dublin Core metadata block. Element order is fixed,
// language and rights are omitted entirely when empty.
func writeMetadata(w xmlw.Writer, b *book.Book) error {
	if err := w.StartElement(NamespaceOPF, "metadata"); err != nil {
		return err
	}
	// opf attributes cannot use default namespace
	if err := w.Namespace(PrefixOPF, NamespaceOPF); err != nil {
		return err
	}

	if err := writeIdentifier(w, b.UID); err != nil {
		return err
	}
	if err := writeText(w, NamespaceDC, "title", b.Title); err != nil {
		return err
	}
	for _, a := range b.Authors {
		if err := writeCreator(w, a); err != nil {
			return err
		}
	}
	for _, s := range b.Subjects {
		if err := writeText(w, NamespaceDC, "subject", s); err != nil {
			return err
		}
	}
	if err := writeText(w, NamespaceDC, "date", b.Date.Format(DateLayout)); err != nil {
		return err
	}
	if len(b.Language) > 0 {
		if err := writeText(w, NamespaceDC, "language", b.Language); err != nil {
			return err
		}
	}
	if len(b.Rights) > 0 {
		if err := writeText(w, NamespaceDC, "rights", b.Rights); err != nil {
			return err
		}
	}
	for _, p := range b.Properties {
		if err := writeProperty(w, p); err != nil {
			return err
		}
	}
	return w.EndElement()
}

func writeIdentifier(w xmlw.Writer, uid string) error {
	if err := w.StartElement(NamespaceDC, "identifier"); err != nil {
		return err
	}
	if err := w.Attr("id", IdentifierID); err != nil {
		return err
	}
	if err := w.NSAttr(NamespaceOPF, "scheme", IdentifierScheme); err != nil {
		return err
	}
	if err := w.Characters(uid); err != nil {
		return err
	}
	return w.EndElement()
}

func writeCreator(w xmlw.Writer, a book.Author) error {
	if err := w.StartElement(NamespaceDC, "creator"); err != nil {
		return err
	}
	if err := w.NSAttr(NamespaceOPF, "role", CreatorRole); err != nil {
		return err
	}
	if err := w.NSAttr(NamespaceOPF, "file-as", a.FileAs()); err != nil {
		return err
	}
	if err := w.Characters(a.DisplayName()); err != nil {
		return err
	}
	return w.EndElement()
}

// writeProperty emits extension metadata entry, declaring its namespace on
// the element when nothing in scope binds it.
func writeProperty(w xmlw.Writer, p book.Property) error {
	if err := w.StartElement(p.Name.Space, p.Name.Local); err != nil {
		return err
	}
	if len(p.Name.Space) > 0 && len(p.Name.Prefix) > 0 {
		if _, ok := w.LookupPrefix(p.Name.Space); !ok {
			if err := w.Namespace(p.Name.Prefix, p.Name.Space); err != nil {
				return err
			}
		}
	}
	if err := w.Characters(p.Value); err != nil {
		return err
	}
	return w.EndElement()
}

func writeText(w xmlw.Writer, space, local, text string) error {
	if err := w.StartElement(space, local); err != nil {
		return err
	}
	if err := w.Characters(text); err != nil {
		return err
	}
	return w.EndElement()
}
