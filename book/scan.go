package book

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// DescriptionName is the book description expected in source directories.
const DescriptionName = "book.yaml"

// LoadDir builds book from source directory. Directory must contain book
// description, missing resources are collected from directory content and
// missing sections are made of content documents in resource order.
func (l *Loader) LoadDir(dir string) (*Book, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptionName))
	if err != nil {
		return nil, fmt.Errorf("unable to read book description: %w", err)
	}
	desc, err := decodeDescription(data)
	if err != nil {
		return nil, err
	}

	if len(desc.Resources) == 0 {
		files, err := l.scanFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("unable to scan source directory: %w", err)
		}
		for _, name := range files {
			desc.Resources = append(desc.Resources, resourceDesc{Href: name})
		}
		l.log.Debug("Resources collected from directory", zap.String("dir", dir), zap.Int("count", len(files)))
	}

	b, err := l.fromDescription(desc)
	if err != nil {
		return nil, err
	}
	if err := l.normalize(b, dir); err != nil {
		return nil, err
	}

	if len(b.Sections) == 0 {
		for _, r := range b.Resources {
			if IsContentDocument(r.MediaType) {
				b.Sections = append(b.Sections, Section{ItemID: r.ID, PageFlow: true})
			}
		}
		l.log.Debug("Sections built from content documents", zap.Int("count", len(b.Sections)))
	}
	return b, nil
}

// scanFiles returns slash separated paths of all regular files under dir in
// natural order.
func (l *Loader) scanFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "META-INF" || (rel != "." && strings.HasPrefix(path.Base(rel), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || l.skip(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(files))
	return files, nil
}

func (l *Loader) skip(rel string) bool {
	switch rel {
	case DescriptionName, "mimetype":
		return true
	}
	return strings.HasPrefix(path.Base(rel), ".") || slices.Contains(l.skipped, rel)
}
