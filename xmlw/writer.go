// Package xmlw provides ordered, namespace aware XML writing over a single
// forward-only output stream. Elements, attributes and character data are
// emitted in call order, the way a StAX writer works, while the document
// itself is assembled with etree and serialized once on EndDocument.
package xmlw

import (
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NamespaceXML is always bound to the "xml" prefix.
const NamespaceXML = "http://www.w3.org/XML/1998/namespace"

var (
	ErrDocumentStarted  = errors.New("document already started")
	ErrDocumentClosed   = errors.New("document already closed")
	ErrRootClosed       = errors.New("root element already written")
	ErrNoOpenElement    = errors.New("no open element")
	ErrStartTagClosed   = errors.New("start tag already closed")
	ErrUnboundNamespace = errors.New("namespace is not bound to a prefix")
)

// Writer is the structured XML writing capability package document writers
// depend on.
type Writer interface {
	StartDocument(encoding, version string) error
	EndDocument() error

	StartElement(space, local string) error
	// EmptyElement opens an element which is closed by the next structural
	// call, attributes may be added to it until then.
	EmptyElement(space, local string) error
	EndElement() error

	DefaultNamespace(uri string) error
	Namespace(prefix, uri string) error
	// LookupPrefix reports the prefix an element in namespace uri would get
	// at the current position.
	LookupPrefix(uri string) (string, bool)

	Attr(local, value string) error
	NSAttr(space, local, value string) error
	Characters(text string) error
}

type docState int

const (
	docFresh docState = iota
	docStarted
	docClosed
)

type binding struct {
	prefix string
	uri    string
}

type frame struct {
	el    *etree.Element
	space string // unresolved element namespace
	decls []binding
	open  bool // start tag still accepts attributes and declarations
	empty bool
}

// TreeWriter implements Writer on top of etree.
// NOTE: not to be used concurrently!
type TreeWriter struct {
	out    io.Writer
	indent int

	doc   *etree.Document
	stack []*frame
	enc   encoding.Encoding // nil means UTF-8, no transcoding
	state docState
}

// Option configures TreeWriter.
type Option func(*TreeWriter)

// WithIndent requests pretty printed output, 0 produces compact document.
func WithIndent(spaces int) Option {
	return func(w *TreeWriter) {
		w.indent = spaces
	}
}

// NewTreeWriter returns writer producing document to out.
func NewTreeWriter(out io.Writer, options ...Option) *TreeWriter {
	w := &TreeWriter{out: out, doc: etree.NewDocument()}
	for _, setOpt := range options {
		setOpt(w)
	}
	return w
}

func (w *TreeWriter) StartDocument(enc, version string) error {
	switch w.state {
	case docStarted:
		return ErrDocumentStarted
	case docClosed:
		return ErrDocumentClosed
	}
	if len(enc) == 0 {
		enc = "UTF-8"
	}
	e, err := ianaindex.IANA.Encoding(enc)
	if err != nil {
		return fmt.Errorf("unknown encoding %q: %w", enc, err)
	}
	if e == nil {
		return fmt.Errorf("unsupported encoding %q", enc)
	}
	if e != unicode.UTF8 {
		w.enc = e
	}
	w.doc.CreateProcInst("xml", fmt.Sprintf(`version="%s" encoding="%s"`, version, enc))
	w.state = docStarted
	return nil
}

func (w *TreeWriter) EndDocument() error {
	if w.state == docClosed {
		return ErrDocumentClosed
	}
	for len(w.stack) > 0 {
		if err := w.pop(); err != nil {
			return err
		}
	}
	w.state = docClosed

	if w.indent > 0 {
		w.doc.Indent(w.indent)
	}

	var err error
	if w.enc != nil {
		tw := transform.NewWriter(w.out, w.enc.NewEncoder())
		_, err = w.doc.WriteTo(tw)
		err = multierr.Append(err, tw.Close())
	} else {
		_, err = w.doc.WriteTo(w.out)
	}
	if err != nil {
		return fmt.Errorf("unable to write document: %w", err)
	}
	return nil
}

func (w *TreeWriter) StartElement(space, local string) error {
	return w.start(space, local, false)
}

func (w *TreeWriter) EmptyElement(space, local string) error {
	return w.start(space, local, true)
}

func (w *TreeWriter) EndElement() error {
	if err := w.prepare(); err != nil {
		return err
	}
	if len(w.stack) == 0 {
		return ErrNoOpenElement
	}
	return w.pop()
}

func (w *TreeWriter) DefaultNamespace(uri string) error {
	return w.Namespace("", uri)
}

func (w *TreeWriter) Namespace(prefix, uri string) error {
	f, err := w.openTag()
	if err != nil {
		return err
	}
	f.decls = append(f.decls, binding{prefix: prefix, uri: uri})
	if len(prefix) == 0 {
		f.el.CreateAttr("xmlns", uri)
	} else {
		f.el.CreateAttr("xmlns:"+prefix, uri)
	}
	return nil
}

func (w *TreeWriter) LookupPrefix(uri string) (string, bool) {
	return w.lookup(uri, true)
}

func (w *TreeWriter) Attr(local, value string) error {
	f, err := w.openTag()
	if err != nil {
		return err
	}
	f.el.CreateAttr(local, value)
	return nil
}

func (w *TreeWriter) NSAttr(space, local, value string) error {
	if len(space) == 0 {
		return w.Attr(local, value)
	}
	f, err := w.openTag()
	if err != nil {
		return err
	}
	prefix, ok := w.lookup(space, false)
	if !ok {
		return fmt.Errorf("attribute %q in %q: %w", local, space, ErrUnboundNamespace)
	}
	f.el.CreateAttr(prefix+":"+local, value)
	return nil
}

func (w *TreeWriter) Characters(text string) error {
	if err := w.prepare(); err != nil {
		return err
	}
	if len(w.stack) == 0 {
		return ErrNoOpenElement
	}
	f := w.stack[len(w.stack)-1]
	if err := w.closeTag(f); err != nil {
		return err
	}
	f.el.CreateText(text)
	return nil
}

func (w *TreeWriter) start(space, local string, empty bool) error {
	if err := w.prepare(); err != nil {
		return err
	}
	parent := &w.doc.Element
	if len(w.stack) > 0 {
		f := w.stack[len(w.stack)-1]
		if err := w.closeTag(f); err != nil {
			return err
		}
		parent = f.el
	} else if w.doc.Root() != nil {
		return fmt.Errorf("element %q: %w", local, ErrRootClosed)
	}
	f := &frame{
		el:    parent.CreateElement(local),
		space: space,
		open:  true,
		empty: empty,
	}
	if len(space) > 0 {
		// bound in scope already, otherwise wait for declarations on the
		// element itself
		if prefix, ok := w.lookup(space, true); ok {
			f.el.Space, f.space = prefix, ""
		}
	}
	w.stack = append(w.stack, f)
	return nil
}

// prepare checks document state and closes pending empty element, if any.
func (w *TreeWriter) prepare() error {
	switch w.state {
	case docClosed:
		return ErrDocumentClosed
	case docFresh:
		// document without prolog
		w.state = docStarted
	}
	if len(w.stack) > 0 && w.stack[len(w.stack)-1].empty {
		return w.pop()
	}
	return nil
}

func (w *TreeWriter) openTag() (*frame, error) {
	if w.state == docClosed {
		return nil, ErrDocumentClosed
	}
	if len(w.stack) == 0 {
		return nil, ErrNoOpenElement
	}
	f := w.stack[len(w.stack)-1]
	if !f.open {
		return nil, ErrStartTagClosed
	}
	return f, nil
}

func (w *TreeWriter) pop() error {
	f := w.stack[len(w.stack)-1]
	if err := w.closeTag(f); err != nil {
		return err
	}
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

// closeTag completes element start tag. Element prefix still unresolved at
// this point must be declared on the element itself.
func (w *TreeWriter) closeTag(f *frame) error {
	if !f.open {
		return nil
	}
	f.open = false
	if len(f.space) == 0 {
		return nil
	}
	prefix, ok := w.lookup(f.space, true)
	if !ok {
		return fmt.Errorf("element %q in %q: %w", f.el.Tag, f.space, ErrUnboundNamespace)
	}
	f.el.Space = prefix
	return nil
}

// lookup finds prefix bound to uri in scope. Elements use default namespace
// when it matches, otherwise innermost prefixed declaration wins and
// redeclared prefixes hide outer bindings. Attributes cannot use default
// namespace.
func (w *TreeWriter) lookup(uri string, allowDefault bool) (string, bool) {
	if uri == NamespaceXML {
		return "xml", true
	}
	if allowDefault && w.defaultNamespace() == uri {
		return "", true
	}
	hidden := make(map[string]bool)
	for i := len(w.stack) - 1; i >= 0; i-- {
		decls := w.stack[i].decls
		for _, b := range decls {
			if len(b.prefix) == 0 || hidden[b.prefix] || b.uri != uri {
				continue
			}
			return b.prefix, true
		}
		for _, b := range decls {
			hidden[b.prefix] = true
		}
	}
	return "", false
}

func (w *TreeWriter) defaultNamespace() string {
	for i := len(w.stack) - 1; i >= 0; i-- {
		decls := w.stack[i].decls
		for j := len(decls) - 1; j >= 0; j-- {
			if len(decls[j].prefix) == 0 {
				return decls[j].uri
			}
		}
	}
	return ""
}
