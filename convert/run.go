package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"opfgen/book"
	"opfgen/config"
	"opfgen/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, env, log)
}

// process handles the core conversion logic independently of CLI framework.
func process(ctx context.Context, src, dst string, env *state.LocalEnv, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := loadBook(src, env.Cfg, log)
	if err != nil {
		return err
	}

	outputName, err := buildOutputPath(dst, &env.Cfg.Package)
	if err != nil {
		return err
	}

	if outputName == stdoutName {
		if err := WriteBook(os.Stdout, b, &env.Cfg.Package, log); err != nil {
			return fmt.Errorf("unable to generate output: %w", err)
		}
		return nil
	}
	if err := Generate(ctx, b, outputName, &env.Cfg.Package, env.Overwrite, log); err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}
	return nil
}

// loadBook reads book from description file or source directory. Files the
// package document is going to reference by itself are never picked up as
// book resources.
func loadBook(src string, cfg *config.Config, log *zap.Logger) (*book.Book, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	loader := book.NewLoader(&cfg.Source, log.Named("book"),
		book.WithReservedIDs(cfg.Package.Navigation.ID),
		book.WithSkippedFiles(cfg.Package.Navigation.Href, cfg.Package.OutputName),
	)

	var b *book.Book
	switch {
	case fi.IsDir():
		b, err = loader.LoadDir(src)
	case fi.Mode().IsRegular():
		b, err = loader.Load(src)
	default:
		return nil, fmt.Errorf("unexpected path mode for (%s)", src)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load book (%s): %w", src, err)
	}

	log.Debug("Book loaded",
		zap.String("uid", b.UID),
		zap.String("title", b.Title),
		zap.Int("resources", len(b.Resources)),
		zap.Int("sections", len(b.Sections)))
	log.Debug("Book structure", zap.Stringer("book", b))
	return b, nil
}
