package book

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"opfgen/config"
)

// DateLayout is the only date form accepted in book descriptions.
const DateLayout = "2006-01-02"

type (
	authorDesc struct {
		First string `yaml:"first"`
		Last  string `yaml:"last"`
	}

	metaDesc struct {
		NS     string `yaml:"ns"`
		Prefix string `yaml:"prefix"`
		Name   string `yaml:"name"`
		Value  string `yaml:"value"`
	}

	resourceDesc struct {
		ID        string `yaml:"id"`
		Href      string `yaml:"href"`
		MediaType string `yaml:"media_type"`
	}

	sectionDesc struct {
		Item     string        `yaml:"item"`
		Flow     *bool         `yaml:"flow"`
		Children []sectionDesc `yaml:"children"`
	}

	// description is YAML form of the book.
	description struct {
		UID       string         `yaml:"uid"`
		Title     string         `yaml:"title"`
		Authors   []authorDesc   `yaml:"authors"`
		Subjects  []string       `yaml:"subjects"`
		Date      string         `yaml:"date"`
		Language  string         `yaml:"language"`
		Rights    string         `yaml:"rights"`
		Meta      []metaDesc     `yaml:"meta"`
		Resources []resourceDesc `yaml:"resources"`
		Sections  []sectionDesc  `yaml:"sections"`
	}
)

// Loader builds books from descriptions, normalizing them according to
// configuration.
type Loader struct {
	cfg      *config.SourceConfig
	log      *zap.Logger
	reserved []string // ids resources cannot take
	skipped  []string // files never picked up from directories
	now      func() time.Time
}

// LoaderOption configures Loader.
type LoaderOption func(*Loader)

// WithReservedIDs prevents derived resource ids from clashing with ids
// added to the manifest by other means (navigation control document).
func WithReservedIDs(ids ...string) LoaderOption {
	return func(l *Loader) {
		l.reserved = append(l.reserved, ids...)
	}
}

// WithSkippedFiles excludes slash separated relative paths from directory
// scans.
func WithSkippedFiles(names ...string) LoaderOption {
	return func(l *Loader) {
		l.skipped = append(l.skipped, names...)
	}
}

func NewLoader(cfg *config.SourceConfig, log *zap.Logger, options ...LoaderOption) *Loader {
	l := &Loader{cfg: cfg, log: log, now: time.Now}
	for _, setOpt := range options {
		setOpt(l)
	}
	return l
}

// Load reads book description from file. Relative resource paths are
// resolved against file location.
func (l *Loader) Load(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read book description: %w", err)
	}
	return l.Decode(data, filepath.Dir(path))
}

// Decode builds book from description data. baseDir may be empty, in which
// case media types are never detected from file content.
func (l *Loader) Decode(data []byte, baseDir string) (*Book, error) {
	desc, err := decodeDescription(data)
	if err != nil {
		return nil, err
	}
	b, err := l.fromDescription(desc)
	if err != nil {
		return nil, err
	}
	if err := l.normalize(b, baseDir); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeDescription(data []byte) (*description, error) {
	desc := &description{}
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(desc); err != nil {
		return nil, fmt.Errorf("failed to decode book description: %w", err)
	}
	return desc, nil
}

func (l *Loader) fromDescription(desc *description) (*Book, error) {
	b := &Book{
		UID:      desc.UID,
		Title:    desc.Title,
		Subjects: desc.Subjects,
		Language: desc.Language,
		Rights:   desc.Rights,
	}

	if len(desc.Date) > 0 {
		d, err := time.Parse(DateLayout, desc.Date)
		if err != nil {
			return nil, fmt.Errorf("bad book date %q: %w", desc.Date, err)
		}
		b.Date = d
	} else {
		now := l.now()
		b.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		l.log.Warn("Book has no date, using current", zap.String("date", b.Date.Format(DateLayout)))
	}

	for _, a := range desc.Authors {
		b.Authors = append(b.Authors, Author{FirstName: a.First, LastName: a.Last})
	}
	for i, m := range desc.Meta {
		if len(m.Name) == 0 {
			return nil, fmt.Errorf("metadata entry %d has no name", i)
		}
		b.Properties = append(b.Properties, Property{
			Name:  QName{Space: m.NS, Local: m.Name, Prefix: m.Prefix},
			Value: m.Value,
		})
	}
	for _, r := range desc.Resources {
		b.Resources = append(b.Resources, Resource{ID: r.ID, Href: r.Href, MediaType: r.MediaType})
	}
	b.Sections = convertSections(desc.Sections)
	return b, nil
}

func convertSections(descs []sectionDesc) []Section {
	if len(descs) == 0 {
		return nil
	}
	sections := make([]Section, 0, len(descs))
	for _, d := range descs {
		s := Section{ItemID: d.Item, PageFlow: true}
		if d.Flow != nil {
			s.PageFlow = *d.Flow
		}
		s.Children = convertSections(d.Children)
		sections = append(sections, s)
	}
	return sections
}
