package book

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

var extMediaTypes = map[string]string{
	".xhtml": "application/xhtml+xml",
	".html":  "application/xhtml+xml",
	".htm":   "application/xhtml+xml",
	".css":   "text/css",
	".ncx":   "application/x-dtbncx+xml",
	".svg":   "image/svg+xml",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".ttf":   "application/x-font-ttf",
	".otf":   "application/vnd.ms-opentype",
	".woff":  "application/font-woff",
	".woff2": "font/woff2",
	".xpgt":  "application/adobe-page-template+xml",
	".smil":  "application/smil+xml",
	".js":    "text/javascript",
}

// IsContentDocument reports whether media type can be part of reading order.
func IsContentDocument(mediaType string) bool {
	return mediaType == "application/xhtml+xml"
}

func (l *Loader) normalize(b *Book, baseDir string) error {
	if l.cfg.FixUID {
		if err := l.fixUID(b); err != nil {
			return err
		}
	}
	if l.cfg.NormalizeLanguage {
		l.normalizeLanguage(b)
	}
	if l.cfg.DeriveIDs {
		l.deriveIDs(b)
	}
	if l.cfg.DetectMediaTypes {
		l.detectMediaTypes(b, baseDir)
	}
	return nil
}

// fixUID makes sure book ID is not empty and is valid UUID.
func (l *Loader) fixUID(b *Book) error {
	if _, err := uuid.Parse(b.UID); err == nil {
		return nil
	}
	refID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("unable to generate new book UUID: %w", err)
	}
	l.log.Warn("Book has invalid ID, correcting", zap.String("old_id", b.UID), zap.Stringer("new_id", refID))
	b.UID = refID.String()
	return nil
}

func (l *Loader) normalizeLanguage(b *Book) {
	if len(b.Language) == 0 {
		return
	}
	tag, err := language.Parse(b.Language)
	if err != nil {
		l.log.Warn("Unable to parse book language, keeping as is", zap.String("language", b.Language), zap.Error(err))
		return
	}
	if s := tag.String(); s != b.Language {
		l.log.Debug("Book language normalized", zap.String("from", b.Language), zap.String("to", s))
		b.Language = s
	}
}

func (l *Loader) deriveIDs(b *Book) {
	taken := make(map[string]bool, len(b.Resources)+len(l.reserved))
	for _, id := range l.reserved {
		taken[id] = true
	}
	for _, r := range b.Resources {
		if len(r.ID) > 0 {
			taken[r.ID] = true
		}
	}
	for i := range b.Resources {
		r := &b.Resources[i]
		if len(r.ID) > 0 {
			continue
		}
		r.ID = deriveID(r.Href, taken)
		l.log.Debug("Resource id derived", zap.String("href", r.Href), zap.String("id", r.ID))
	}
}

// deriveID makes XML name from href base name unique among taken ids.
func deriveID(href string, taken map[string]bool) string {
	base := path.Base(href)
	id := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	switch {
	case len(id) == 0:
		id = "item"
	case id[0] < 'a' || id[0] > 'z':
		id = "id-" + id
	}
	candidate := id
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
	taken[candidate] = true
	return candidate
}

func (l *Loader) detectMediaTypes(b *Book, baseDir string) {
	for i := range b.Resources {
		r := &b.Resources[i]
		if len(r.MediaType) > 0 {
			continue
		}
		r.MediaType = detectMediaType(baseDir, r.Href)
		if len(r.MediaType) == 0 {
			l.log.Warn("Unable to detect resource media type", zap.String("href", r.Href))
		}
	}
}

// detectMediaType trusts file content over its name, text formats are only
// recognized by extension.
func detectMediaType(baseDir, href string) string {
	if len(baseDir) > 0 && filepath.IsLocal(filepath.FromSlash(href)) {
		kind, err := filetype.MatchFile(filepath.Join(baseDir, filepath.FromSlash(href)))
		if err == nil && kind != filetype.Unknown && len(kind.MIME.Value) > 0 {
			return kind.MIME.Value
		}
	}
	return extMediaTypes[strings.ToLower(path.Ext(href))]
}
