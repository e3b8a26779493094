package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"opfgen/book"
	"opfgen/config"
	"opfgen/opf"
	"opfgen/xmlw"
)

func navigation(cfg *config.PackageConfig) opf.Navigation {
	return opf.Navigation{
		ID:        cfg.Navigation.ID,
		Href:      cfg.Navigation.Href,
		MediaType: cfg.Navigation.MediaType,
	}
}

// WriteBook writes package document for the book to out using package
// configuration.
func WriteBook(out io.Writer, b *book.Book, cfg *config.PackageConfig, log *zap.Logger) error {
	w := xmlw.NewTreeWriter(out, xmlw.WithIndent(cfg.Indent))
	return opf.Write(w, b, navigation(cfg), cfg.Encoding, log.Named("opf"))
}

// Generate creates package document file. Document is produced under
// temporary name next to requested one and renamed when complete, so failed
// runs never leave partial output behind.
func Generate(ctx context.Context, b *book.Book, outputPath string, cfg *config.PackageConfig, overwrite bool, log *zap.Logger) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Info("Generating package document", zap.String("output", outputPath))

	// Check if output file already exists
	if fi, err := os.Stat(outputPath); err == nil {
		if fi.IsDir() {
			return fmt.Errorf("output path is a directory: %s", outputPath)
		}
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputPath)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputPath))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	dir, name := filepath.Split(outputPath)
	f, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	tmpName := f.Name()
	defer func() {
		if err != nil {
			if er := os.Remove(tmpName); er != nil && !os.IsNotExist(er) {
				err = multierr.Append(err, fmt.Errorf("unable to remove temporary file: %w", er))
			}
		}
	}()

	if err = WriteBook(f, b, cfg, log); err != nil {
		return multierr.Append(err, f.Close())
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("unable to close output file: %w", err)
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("unable to set output file mode: %w", err)
	}
	if err = os.Rename(tmpName, outputPath); err != nil {
		return fmt.Errorf("unable to rename output file: %w", err)
	}
	return nil
}
