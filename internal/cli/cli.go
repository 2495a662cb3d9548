package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cppmunge/internal/cache"
	"cppmunge/internal/catalog"
	"cppmunge/internal/config"
	"cppmunge/internal/diag"
	"cppmunge/internal/errcodes"
	"cppmunge/internal/filewalker"
	"cppmunge/internal/gitrev"
	"cppmunge/internal/graph"
	"cppmunge/internal/munger"
	"cppmunge/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/viant/afs"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := NewRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree with defaults taken from cfg.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:          "cppmunge",
		Short:        "C++ source munger for destructor instrumentation, error codes and translatable literals",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose mode")

	rootCmd.AddCommand(mungeCmd(cfg))
	rootCmd.AddCommand(updateCmd(cfg))
	rootCmd.AddCommand(scanCmd(cfg))
	rootCmd.AddCommand(syncCmd(cfg))

	return rootCmd
}

// mungeOptions are the per-file switches shared by munge, update and scan.
type mungeOptions struct {
	codes   string
	catalog string
	flags   int
	msvc    bool
	macros  string
	dryRun  bool
}

func (o *mungeOptions) bind(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVarP(&o.codes, "codes", "c", cfg.CodesHeader, "Path to the error codes header file")
	fs.IntVarP(&o.flags, "flags", "f", cfg.Flags, "Processing flags (1=no destructor catches, 2=no error codes, 4=no code insertion)")
	fs.BoolVarP(&o.msvc, "msvc", "m", cfg.MSVC, "Print diagnostics in MSVC format")
	fs.StringVar(&o.macros, "error-macros", cfg.ErrorMacros,
		"Error macros as NAME:ARG with 0-based code argument (default FXERRG:2,FXERRH:3; TnFOX sources use FXERRG:1,FXERRH:2)")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Process without writing any file")
}

func (o *mungeOptions) style() diag.Style {
	if o.msvc {
		return diag.MSVC
	}
	return diag.GNU
}

func (o *mungeOptions) options(source string) (munger.Options, error) {
	opts := munger.Options{
		Source:      source,
		CodesHeader: o.codes,
		Catalog:     o.catalog,
		Flags:       munger.Flags(o.flags),
		DryRun:      o.dryRun,
	}
	if o.macros != "" {
		macros, err := errcodes.ParseMacros(o.macros)
		if err != nil {
			return opts, fmt.Errorf("parse error macros: %w", err)
		}
		opts.Macros = macros
	}
	return opts, nil
}

func mungeCmd(cfg *config.Config) *cobra.Command {
	var (
		opts   mungeOptions
		source string
	)
	cmd := &cobra.Command{
		Use:   "munge -s <source>",
		Short: "Munge one C++ source file in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMunge(cmd.ErrOrStderr(), source, &opts)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Path to the source file")
	cmd.Flags().StringVarP(&opts.catalog, "text", "t", cfg.Catalog, "Path to the human language translation file")
	opts.bind(cmd.Flags(), cfg)
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func updateCmd(cfg *config.Config) *cobra.Command {
	var (
		dir       string
		stampFile string
		gitHeader string
	)
	cmd := &cobra.Command{
		Use:   "update -d <directory> [-t stampfile] [-- munge flags]",
		Short: "Munge every source file changed since the last update",
		Long: `Munges every .cxx file in the directory modified after the timestamp file,
then touches the timestamp file. Arguments after -- are munge flags, for example:

  cppmunge update -d src -- -m -f 4 -c include/FXErrCodes.h -t TnFOXTrans.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts mungeOptions
			fs := pflag.NewFlagSet("munge", pflag.ContinueOnError)
			fs.SetOutput(io.Discard)
			fs.StringVarP(&opts.catalog, "text", "t", cfg.Catalog, "Path to the human language translation file")
			opts.bind(fs, cfg)
			if err := fs.Parse(args); err != nil {
				return fmt.Errorf("parse munge flags: %w", err)
			}
			return runUpdate(cmd.ErrOrStderr(), dir, stampFile, gitHeader, &opts)
		},
	}
	cmd.Flags().StringVarP(&dir, "directory", "d", ".", "Path to the directory of sources")
	cmd.Flags().StringVarP(&stampFile, "timestampfile", "t", cfg.StampFile, "Path to the timestamp file")
	cmd.Flags().StringVar(&gitHeader, "git-revision-header", "", "Path to a header file for writing the current git revision into")
	return cmd
}

func scanCmd(cfg *config.Config) *cobra.Command {
	var (
		opts      mungeOptions
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Report the changes munging each source file would make, without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dryRun = true
			return runScan(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], recursive, cfg.WorkerCount, &opts)
		},
	}
	cmd.Flags().StringVarP(&opts.catalog, "text", "t", cfg.Catalog, "Path to the human language translation file")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	opts.bind(cmd.Flags(), cfg)
	return cmd
}

func syncCmd(cfg *config.Config) *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "sync -t <catalog>",
		Short: "Mirror a translation catalog into PostgreSQL and the Neo4j phrase graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, catalogPath)
		},
	}
	cmd.Flags().StringVarP(&catalogPath, "text", "t", cfg.Catalog, "Path to the human language translation file")
	return cmd
}

// runMunge handles the `munge` command. Diagnostics go to errOut.
func runMunge(errOut io.Writer, source string, o *mungeOptions) error {
	ctx, cancel := setupContext()
	defer cancel()

	opts, err := o.options(source)
	if err != nil {
		return err
	}
	reporter := diag.NewReporter(errOut, o.style())
	_, err = mungeFile(ctx, afs.New(), opts, reporter)
	return err
}

// mungeFile runs the munger and reports a fatal failure at the line it
// happened on, the way a compiler would.
func mungeFile(ctx context.Context, fs afs.Service, opts munger.Options, reporter *diag.Reporter) (*munger.Result, error) {
	res, err := munger.Run(ctx, fs, opts, reporter)
	var fatal *munger.FatalError
	if errors.As(err, &fatal) && fatal.Line > 0 {
		at := diag.Position{File: fatal.File, Line: fatal.Line}
		reporter.Errorf(at, "%v", fatal.Err)
		reporter.Errorf(at, "PROGRAM FAILED!!!")
	}
	return res, err
}

// runUpdate handles the `update` command.
func runUpdate(errOut io.Writer, dir, stampFile, gitHeader string, o *mungeOptions) error {
	ctx, cancel := setupContext()
	defer cancel()

	fs := afs.New()

	if gitHeader != "" {
		if err := writeRevisionHeader(ctx, fs, gitHeader); err != nil {
			return err
		}
	}

	w := filewalker.NewWalker(filewalker.ModifiedAfter(filewalker.StampTime(stampFile)))
	entries, err := w.Walk(dir)
	if err != nil {
		return fmt.Errorf("walk source directory: %w", err)
	}
	if len(entries) == 0 {
		log.Info().Str("directory", dir).Msg("No files need updating")
		return nil
	}

	reporter := diag.NewReporter(errOut, o.style())
	failed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts, err := o.options(entry.Path)
		if err != nil {
			return err
		}
		if _, err := mungeFile(ctx, fs, opts, reporter); err != nil {
			log.Error().Err(err).Str("file", entry.Path).Msg("Munge failed")
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed, timestamp not updated", failed, len(entries))
	}
	if !o.dryRun {
		if err := filewalker.Touch(stampFile); err != nil {
			return err
		}
	}

	log.Info().Int("files", len(entries)).Msg("Update complete")
	return nil
}

func writeRevisionHeader(ctx context.Context, fs afs.Service, path string) error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	description, describeErr := gitrev.Describe(ctx, repoRoot)

	var buf bytes.Buffer
	if err := gitrev.WriteHeader(&buf, description, describeErr); err != nil {
		return err
	}
	if err := fs.Upload(ctx, path, 0644, &buf); err != nil {
		return fmt.Errorf("write revision header %s: %w", path, err)
	}
	return nil
}

// runScan handles the `scan` command. The report goes to out and diagnostics
// to errOut.
func runScan(out, errOut io.Writer, dir string, recursive bool, workers int, o *mungeOptions) error {
	ctx, cancel := setupContext()
	defer cancel()

	var walkOpts []filewalker.Option
	if recursive {
		walkOpts = append(walkOpts, filewalker.Recursive())
	}
	entries, err := filewalker.NewWalker(walkOpts...).Walk(dir)
	if err != nil {
		return fmt.Errorf("walk source directory: %w", err)
	}

	fs := afs.New()
	reporter := diag.NewReporter(errOut, o.style())

	pool := worker.NewPool[filewalker.FileEntry, *munger.Result](workers,
		func(ctx context.Context, entry filewalker.FileEntry) (*munger.Result, error) {
			opts, err := o.options(entry.Path)
			if err != nil {
				return nil, err
			}
			return mungeFile(ctx, fs, opts, reporter)
		},
	)
	results := pool.Execute(ctx, entries)

	pending := 0
	for _, task := range results {
		if task.Err != nil || task.Result == nil {
			continue
		}
		res := task.Result
		if !res.SourceChanged && !res.CodesChanged && !res.CatalogChanged {
			continue
		}
		pending++
		fmt.Fprintf(out, "%s: %d destructor(s), %d new code(s), catalog changes: %t\n",
			filepath.ToSlash(task.Input.Path), res.Destructors, len(res.NewCodes), res.CatalogChanged)
	}

	failed := worker.Failed(results)
	log.Info().
		Int("files", len(entries)).
		Int("pending", pending).
		Int("failed", failed).
		Msg("Scan complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(entries))
	}
	return nil
}

// runSync handles the `sync` command.
func runSync(out, errOut io.Writer, cfg *config.Config, catalogPath string) error {
	if catalogPath == "" {
		return errors.New("no translation file given")
	}

	ctx, cancel := setupContext()
	defer cancel()

	reporter := diag.NewReporter(errOut, diag.GNU)
	cat, err := catalog.Open(ctx, afs.New(), catalogPath, "", reporter)
	if err != nil {
		return err
	}
	if cat.IsDisabled() {
		return fmt.Errorf("translation file %s has errors, not syncing", catalogPath)
	}
	rows := cat.Rows()

	pgPool, neo4jDriver, err := initDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()
	defer neo4jDriver.Close(ctx)

	mirror := cache.NewCatalogMirror(pgPool)
	if err := mirror.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := mirror.Preload(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to preload catalog mirror")
	}

	name := filepath.Base(catalogPath)
	stored := 0
	for _, batch := range worker.Batch(rows, cfg.BatchSize) {
		n, err := mirror.Upsert(ctx, name, batch)
		if err != nil {
			return fmt.Errorf("mirror catalog rows: %w", err)
		}
		stored += n
	}
	log.Info().Int("rows", len(rows)).Int("stored", stored).Msg("Catalog mirrored to PostgreSQL")

	builder := graph.NewPhraseBuilder(neo4jDriver)
	if err := builder.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure graph schema: %w", err)
	}
	if _, err := builder.UpsertRows(ctx, rows); err != nil {
		return fmt.Errorf("update phrase graph: %w", err)
	}

	stats, err := graph.NewPhraseQuerier(neo4jDriver).PendingByFile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to query phrase graph")
	}
	for _, s := range stats {
		fmt.Fprintf(out, "%s: %d phrase(s), %d untranslated\n", s.File, s.Phrases, s.Pending)
	}

	log.Info().
		Int("rows", len(rows)).
		Int("langids", len(cat.LangIDs())).
		Msg("Sync complete")
	return nil
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// initDependencies connects to PostgreSQL and Neo4j.
func initDependencies(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, neo4j.DriverWithContext, error) {
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}

	if err := pgPool.Ping(ctx); err != nil {
		pgPool.Close()
		return nil, nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")

	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		pgPool.Close()
		return nil, nil, fmt.Errorf("connect Neo4j: %w", err)
	}

	if err := neo4jDriver.VerifyConnectivity(ctx); err != nil {
		pgPool.Close()
		neo4jDriver.Close(ctx)
		return nil, nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")

	return pgPool, neo4jDriver, nil
}
