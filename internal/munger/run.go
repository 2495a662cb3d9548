package munger

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"cppmunge/internal/catalog"
	"cppmunge/internal/diag"
	"cppmunge/internal/errcodes"

	"github.com/rs/zerolog/log"
	"github.com/viant/afs"
)

// Options configure one munge of one source file.
type Options struct {
	Source      string
	CodesHeader string
	Catalog     string
	Flags       Flags
	Macros      []errcodes.Macro
	DryRun      bool
}

// Result summarises what a run did.
type Result struct {
	Lines          int
	SourceChanged  bool
	CodesChanged   bool
	CatalogChanged bool
	Destructors    int
	NewCodes       []string
	Phrases        int

	Codes    *errcodes.Catalog
	Literals *catalog.Catalog
}

// SplitLines splits text into lines that keep their terminators.
func SplitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// Run munges opts.Source in place, updating the codes header and the catalog.
// Nothing is written when opts.DryRun is set.
func Run(ctx context.Context, fs afs.Service, opts Options, reporter *diag.Reporter) (*Result, error) {
	inputName := filepath.Base(opts.Source)
	log.Info().Str("file", opts.Source).Msg("Processing source file")

	if opts.Flags&NoCodeInsertion == 0 {
		log.Warn().Msg("Automatic exception code insertion is not implemented")
	}

	data, err := fs.DownloadWithURL(ctx, opts.Source)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", opts.Source, err)
	}

	var codes *errcodes.Catalog
	if opts.Flags&NoErrorCodes == 0 && opts.CodesHeader != "" {
		header, err := readHeader(ctx, fs, opts.CodesHeader, opts.DryRun)
		if err != nil {
			return nil, err
		}
		codes, err = errcodes.Parse(header, inputName,
			errcodes.WithMacros(opts.Macros),
			errcodes.WithReporter(reporter),
		)
		if err != nil {
			return nil, fmt.Errorf("parse codes header %s: %w", opts.CodesHeader, err)
		}
	}

	literals, err := catalog.Open(ctx, fs, opts.Catalog, inputName, reporter)
	if err != nil {
		return nil, err
	}

	m := New(opts.Source, opts.Flags, codes, literals, reporter)
	out, err := m.Process(SplitLines(string(data)))
	if err != nil {
		return nil, err
	}

	res := &Result{
		Lines:         m.Line(),
		SourceChanged: m.Changed(),
		CodesChanged:  codes != nil && codes.Altered(),
		Destructors:   m.Destructors(),
		NewCodes:      m.NewCodes(),
		Phrases:       literals.Translations().Len(),
		Codes:         codes,
		Literals:      literals,
	}

	if opts.DryRun {
		res.CatalogChanged = literals.Altered() && !literals.IsDisabled()
		log.Info().Int("lines", res.Lines).Bool("dry_run", true).Msg("Processing complete")
		return res, nil
	}

	if res.CodesChanged {
		var buf bytes.Buffer
		if err := codes.Write(&buf, opts.CodesHeader); err != nil {
			return nil, err
		}
		if err := fs.Upload(ctx, opts.CodesHeader, 0644, &buf); err != nil {
			return nil, fmt.Errorf("write codes header %s: %w", opts.CodesHeader, err)
		}
		log.Info().Str("file", opts.CodesHeader).Strs("codes", res.NewCodes).Msg("Codes header written")
	}

	if res.SourceChanged {
		if err := fs.Upload(ctx, opts.Source, 0644, strings.NewReader(strings.Join(out, ""))); err != nil {
			return nil, fmt.Errorf("write source %s: %w", opts.Source, err)
		}
		log.Info().Str("file", opts.Source).Int("destructors", res.Destructors).Msg("Source rewritten")
	}

	res.CatalogChanged, err = literals.Save(ctx, fs, opts.Catalog)
	if err != nil {
		return nil, err
	}

	log.Info().Int("lines", res.Lines).Msg("Processing complete")
	return res, nil
}

// readHeader returns the header contents, creating an empty header when it
// does not exist yet.
func readHeader(ctx context.Context, fs afs.Service, path string, dryRun bool) (string, error) {
	exists, err := fs.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("stat codes header %s: %w", path, err)
	}
	if !exists {
		log.Warn().Str("file", path).Msg("Codes header not found, creating it")
		if !dryRun {
			if err := fs.Upload(ctx, path, 0644, strings.NewReader("")); err != nil {
				return "", fmt.Errorf("create codes header %s: %w", path, err)
			}
		}
		return "", nil
	}
	data, err := fs.DownloadWithURL(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read codes header %s: %w", path, err)
	}
	return string(data), nil
}
