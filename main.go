package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yumyai/afscan/internal/util"
	"github.com/yumyai/afscan/logger"
	"github.com/yumyai/afscan/pkg/aligner"
	"github.com/yumyai/afscan/pkg/catalog"
	"github.com/yumyai/afscan/pkg/config"
	"github.com/yumyai/afscan/pkg/db"
	"github.com/yumyai/afscan/pkg/handler"
	"github.com/yumyai/afscan/pkg/pipeline"
)

// version can be overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

const usage = `afscan detects known antifungal-resistance mutations in sequencing reads.

Usage:
  afscan scan  [flags]   align reads (or read existing alignments) and report mutations
  afscan serve [flags]   serve the scanner over HTTP
  afscan version

Run "afscan <command> -h" for the flags of a command.
`

func main() {

	// Establish logger
	if err := logger.InitLogger(zapcore.InfoLevel, ""); err != nil {
		panic(err)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = runScan(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Println("afscan", version)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logger.Error("afscan failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync() // Make sure that the buffered is flushed.
}

// commonFlags are shared by scan and serve. Only flags given on the command
// line override the loaded configuration.
type commonFlags struct {
	configPath string
	dataDir    string
	catalog    string
	store      string
	threads    int
	minIdent   float64
	logFile    string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML config file (optional)")
	fs.StringVar(&c.dataDir, "data", "", "data directory holding catalog/ and db/ (env AFSCAN_DATA, default ./data)")
	fs.StringVar(&c.catalog, "catalog", "", "mutation catalog (default <data>/catalog/mutations.tsv)")
	fs.StringVar(&c.store, "store", "", "SQLite file to store runs in (optional)")
	fs.IntVar(&c.threads, "threads", 0, "threads for the aligner and stream scanning")
	fs.Float64Var(&c.minIdent, "min-identity", 0, "skip alignments below this percent identity")
	fs.StringVar(&c.logFile, "log-file", "", "also write the log to this file")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
}

// load reads the configuration, applies the flags that were set and
// re-initialises the logger from the result.
func (c *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataDir = c.dataDir
		case "catalog":
			cfg.Catalog = c.catalog
		case "store":
			cfg.Store = c.store
		case "threads":
			cfg.Threads = c.threads
		case "min-identity":
			cfg.MinIdentity = c.minIdent
		case "log-file":
			cfg.LogFile = c.logFile
		case "log-level":
			cfg.LogLevel = c.logLevel
		}
	})

	if err := logger.InitLogger(logger.ParseLevel(cfg.LogLevel), cfg.LogFile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// loadCatalog loads the catalog and opens the store if one is configured.
func loadCatalog(cfg *config.Config) (*catalog.Index, *db.Store, error) {
	path := cfg.CatalogPath()
	idx, err := catalog.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Catalog loaded", zap.String("path", path), zap.Int("entries", idx.Len()), zap.Int("genes", len(idx.Genes())))

	if cfg.Store == "" {
		return idx, nil, nil
	}
	store, err := db.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("Open result store on", zap.String("DB_LOC", cfg.Store))
	return idx, store, nil
}

// alignmentFlags collects repeated -a LABEL=path values.
type alignmentFlags []pipeline.Input

func (a *alignmentFlags) String() string {
	parts := make([]string, 0, len(*a))
	for _, in := range *a {
		parts = append(parts, in.Label+"="+in.AlignmentPath)
	}
	return strings.Join(parts, ",")
}

func (a *alignmentFlags) Set(value string) error {
	label, path, ok := strings.Cut(value, "=")
	if !ok {
		label, path = util.StripExt(value), value
	}
	if label == "" || path == "" {
		return fmt.Errorf("expected LABEL=path, got %q", value)
	}
	*a = append(*a, pipeline.Input{Label: label, AlignmentPath: path})
	return nil
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)

	var (
		common     commonFlags
		alignments alignmentFlags
		r1, r2, se string
		sample     string
		outDir     string
		workDir    string
		alignerCmd string
		alignerDB  string
		keep       bool
	)
	common.register(fs)
	fs.StringVar(&r1, "1", "", "forward reads (R1)")
	fs.StringVar(&r2, "2", "", "reverse reads (R2)")
	fs.StringVar(&se, "s", "", "single-end reads (SE)")
	fs.Var(&alignments, "a", "existing aligner output as LABEL=path (repeatable)")
	fs.StringVar(&sample, "prefix", "", "sample name used as output prefix (default from the read file)")
	fs.StringVar(&outDir, "o", "", "output directory")
	fs.StringVar(&workDir, "work-dir", "", "directory for intermediate alignments (default: temporary)")
	fs.StringVar(&alignerCmd, "aligner", "", "aligner executable (default diamond)")
	fs.StringVar(&alignerDB, "db", "", "aligner protein database (default <data>/db/resistance_proteins.dmnd)")
	fs.BoolVar(&keep, "keep", false, "keep intermediate alignment files")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.OutputDir = outDir
		case "work-dir":
			cfg.WorkDir = workDir
		case "aligner":
			cfg.Aligner = alignerCmd
		case "db":
			cfg.AlignerDB = alignerDB
		case "keep":
			cfg.KeepIntermediate = keep
		}
	})

	inputs := append(pipeline.InputsFromReads(r1, r2, se), alignments...)
	if len(inputs) == 0 {
		fs.Usage()
		return errors.New("give reads with -1/-2 or -s, or alignments with -a")
	}
	needAligner := len(alignments) < len(inputs)

	if err := cfg.Validate(needAligner); err != nil {
		return err
	}

	if sample == "" {
		sample = sampleName(inputs)
	}

	idx, store, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	pcfg := pipeline.Config{
		Sample:           sample,
		Inputs:           inputs,
		OutputDir:        cfg.OutputDir,
		WorkDir:          cfg.WorkDir,
		Threads:          cfg.Threads,
		KeepIntermediate: cfg.KeepIntermediate,
		MinIdentity:      cfg.MinIdentity,
	}
	if needAligner {
		pcfg.Aligner = &aligner.Aligner{
			Command:   cfg.Aligner,
			Mode:      cfg.AlignerMode,
			Database:  cfg.AlignerDBPath(),
			Threads:   cfg.Threads,
			ExtraArgs: cfg.AlignerArgs,
		}
		if err := pcfg.Aligner.Check(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := pipeline.NewRunner(idx, store, logger.L()).Run(ctx, pcfg)
	if err != nil {
		return err
	}

	for _, s := range rep.Result.Summary {
		logger.Info("Resistance mutation",
			zap.String("gene", s.Gene),
			zap.String("change", fmt.Sprintf("%s%d%s", s.Reference, s.Position, s.Mutation)),
			zap.String("fungicide", s.Compound),
			zap.Int("support_reads", s.SupportReads),
		)
	}
	if len(rep.Result.Summary) == 0 {
		logger.Info("No cataloged resistance mutations found")
	}
	return nil
}

// sampleName derives an output prefix from the first input, dropping a
// trailing read-pair marker.
func sampleName(inputs []pipeline.Input) string {
	path := inputs[0].ReadsPath
	if path == "" {
		path = inputs[0].AlignmentPath
	}
	name := util.StripExt(path)
	for _, suffix := range []string{"_R1", "_R2", "_1", "_2", ".R1", ".R2"} {
		if trimmed := strings.TrimSuffix(name, suffix); trimmed != name && trimmed != "" {
			return trimmed
		}
	}
	return name
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)

	var (
		common commonFlags
		addr   string
	)
	common.register(fs)
	fs.StringVar(&addr, "addr", "", "listen address (default 0.0.0.0:8080)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}

	idx, store, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	runner := pipeline.NewRunner(idx, store, logger.L())
	sctx := handler.NewScanContext(runner, cfg.Threads, cfg.MinIdentity)
	sctx.MaxBodyBytes = cfg.MaxBodyBytes

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sctx.BaseCtx = ctx

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.NewRouter(sctx, logger.L()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Start:", zap.String("Version", version))
	logger.Info("Server starting on", zap.String("addr", cfg.Addr))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("error starting server: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
