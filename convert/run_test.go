package convert

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"opfgen/book"
	"opfgen/config"
	"opfgen/state"
)

const sampleDescription = `uid: 0190a4f2-7c3e-7d2a-9b1e-3f5c2d1e0a9b
title: Sample
authors:
  - first: Jane
    last: Doe
date: 2010-03-07
language: en
`

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env
}

// setupSourceDir creates book source directory with a few content documents.
func setupSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		book.DescriptionName: sampleDescription,
		"ch1.xhtml":          "<html/>",
		"ch2.xhtml":          "<html/>",
		"style.css":          "body {}",
		"toc.ncx":            "<ncx/>",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func readPackage(t *testing.T, path string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		t.Fatalf("read package document: %v", err)
	}
	pkg := doc.SelectElement("package")
	if pkg == nil {
		t.Fatal("Missing package element")
	}
	return pkg
}

func attrValues(elements []*etree.Element, key string) []string {
	var values []string
	for _, el := range elements {
		values = append(values, el.SelectAttrValue(key, ""))
	}
	return values
}

// listDir returns names of directory entries.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := setupSourceDir(t)
	dst := t.TempDir()

	if err := process(ctx, src, dst, env, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	pkg := readPackage(t, filepath.Join(dst, "content.opf"))

	items := pkg.FindElements("manifest/item")
	if got, want := strings.Join(attrValues(items, "href"), ","), "toc.ncx,ch1.xhtml,ch2.xhtml,style.css"; got != want {
		t.Errorf("manifest hrefs = %s, want %s", got, want)
	}
	if got, want := strings.Join(attrValues(pkg.FindElements("spine/itemref"), "idref"), ","), "ch1,ch2"; got != want {
		t.Errorf("spine = %s, want %s", got, want)
	}
	if creator := pkg.FindElement("metadata/dc:creator"); creator == nil || creator.Text() != "Jane Doe" {
		t.Error("creator is missing")
	}
}

func TestProcess_DescriptionFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "desc.yaml")
	content := sampleDescription + `resources:
  - href: text/intro.xhtml
sections:
  - item: intro
`
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatalf("write description: %v", err)
	}
	out := filepath.Join(t.TempDir(), "nested", "book.opf")

	if err := process(ctx, src, out, env, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	pkg := readPackage(t, out)
	items := pkg.FindElements("manifest/item")
	if len(items) != 2 {
		t.Fatalf("manifest entries = %d, want 2", len(items))
	}
	if got := items[1].SelectAttrValue("id", ""); got != "intro" {
		t.Errorf("derived id = %q, want intro", got)
	}
	if got := items[1].SelectAttrValue("media-type", ""); got != "application/xhtml+xml" {
		t.Errorf("media type = %q, want application/xhtml+xml", got)
	}
}

func TestProcess_NonExistentPath(t *testing.T) {
	ctx, env := setupTestEnv(t)

	err := process(ctx, "/nonexistent/path/book.yaml", t.TempDir(), env, env.Log)
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("Expected error containing 'input source was not found', got: %v", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	err := process(cancelCtx, setupSourceDir(t), t.TempDir(), env, env.Log)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestProcess_ExistingOutput(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := setupSourceDir(t)
	dst := t.TempDir()
	out := filepath.Join(dst, "content.opf")
	if err := os.WriteFile(out, []byte("old"), 0644); err != nil {
		t.Fatalf("write old output: %v", err)
	}

	err := process(ctx, src, dst, env, env.Log)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("Expected already exists error, got %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "old" {
		t.Error("existing output should be left intact")
	}

	env.Overwrite = true
	if err := process(ctx, src, dst, env, env.Log); err != nil {
		t.Fatalf("process() with overwrite error = %v", err)
	}
	readPackage(t, out)
}

func TestGenerate_FailureLeavesNoOutput(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dst := t.TempDir()
	out := filepath.Join(dst, "content.opf")

	b := &book.Book{
		UID:   "0190a4f2-7c3e-7d2a-9b1e-3f5c2d1e0a9b",
		Title: "Broken",
		Date:  time.Date(2010, time.March, 7, 0, 0, 0, 0, time.UTC),
		Properties: []book.Property{
			{Name: book.QName{Space: "urn:nowhere", Local: "thing"}, Value: "x"},
		},
	}

	if err := Generate(ctx, b, out, &env.Cfg.Package, false, env.Log); err == nil {
		t.Fatal("Expected error for unbound property namespace")
	}
	if names := listDir(t, dst); len(names) != 0 {
		t.Errorf("output directory should be empty, got %v", names)
	}
}

func TestGenerate_OutputIsDirectory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dst := t.TempDir()

	err := Generate(ctx, &book.Book{}, dst, &env.Cfg.Package, true, env.Log)
	if err == nil || !strings.Contains(err.Error(), "is a directory") {
		t.Errorf("Expected directory error, got %v", err)
	}
}

func TestWriteBook_Config(t *testing.T) {
	_, env := setupTestEnv(t)
	cfg := env.Cfg.Package
	cfg.Indent = 0
	cfg.Encoding = "ISO-8859-1"
	cfg.Navigation = config.NavigationConfig{ID: "toc", Href: "nav.ncx", MediaType: "application/x-dtbncx+xml"}

	b := &book.Book{
		UID:   "0190a4f2-7c3e-7d2a-9b1e-3f5c2d1e0a9b",
		Title: "Café",
		Date:  time.Date(2010, time.March, 7, 0, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	if err := WriteBook(&buf, b, &cfg, env.Log); err != nil {
		t.Fatalf("WriteBook() error = %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte(`<?xml version="1.0" encoding="ISO-8859-1"?><package`)) {
		t.Errorf("unexpected document start: %q", data)
	}
	if !bytes.Contains(data, []byte(`<item id="toc" href="nav.ncx" media-type="application/x-dtbncx+xml"/>`)) {
		t.Error("navigation entry not taken from configuration")
	}
	if !bytes.Contains(data, []byte(`<spine toc="toc"/>`)) {
		t.Error("spine should reference configured navigation")
	}
	if !bytes.Contains(data, []byte{'C', 'a', 'f', 0xE9}) {
		t.Error("document is not transcoded")
	}
}

func TestBuildOutputPath(t *testing.T) {
	cfg := &config.PackageConfig{OutputName: "content.opf"}
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	tests := []struct {
		name string
		dst  string
		want string
	}{
		{"stdout", "-", "-"},
		{"absent", "", filepath.Join(wd, "content.opf")},
		{"existing directory", dir, filepath.Join(dir, "content.opf")},
		{"new directory", filepath.Join(dir, "out") + string(filepath.Separator), filepath.Join(dir, "out", "content.opf")},
		{"file", filepath.Join(dir, "book.opf"), filepath.Join(dir, "book.opf")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildOutputPath(tt.dst, cfg)
			if err != nil {
				t.Fatalf("buildOutputPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildOutputPath(%q) = %q, want %q", tt.dst, got, tt.want)
			}
		})
	}
}

func TestRun_Command(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := setupSourceDir(t)
	dst := t.TempDir()
	out := filepath.Join(dst, "content.opf")
	if err := os.WriteFile(out, []byte("old"), 0644); err != nil {
		t.Fatalf("write old output: %v", err)
	}

	cmd := &cli.Command{
		Name:   "convert",
		Action: Run,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}},
		},
	}
	if err := cmd.Run(ctx, []string{"convert", "--ow", src, dst}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !env.Overwrite {
		t.Error("overwrite flag was not stored in environment")
	}
	readPackage(t, out)
}

func TestRun_NoSource(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	cmd := &cli.Command{Name: "convert", Action: Run}
	err := cmd.Run(ctx, []string{"convert"})
	if err == nil || !strings.Contains(err.Error(), "no input source") {
		t.Errorf("Expected no input source error, got %v", err)
	}
}
