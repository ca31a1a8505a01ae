package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/config"
	aictehttp "github.com/collegelist/aicte/internal/http"
	"github.com/collegelist/aicte/internal/progress"
	"github.com/collegelist/aicte/pkg/store"
)

// app is shared by every command. cfg is resolved before a command runs.
type app struct {
	cfg config.Config

	configPath string
	verbose    bool
	progress   bool
	flags      config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "aicte",
		Short: "aicte builds and serves an offline copy of the AICTE institution directory.",
		Long: `aicte downloads the approved-institution listing of every Indian state and
union territory from the AICTE dashboard, merges it into one snapshot, and
serves it over HTTP.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initSlog(a.verbose)
			return a.loadConfig()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return invalidArgs(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&a.progress, "progress", false, "Print progress lines while working")
	pf.StringVar(&a.flags.DataDir, "data-dir", "", "Local artifact directory (default \"data\")")
	pf.StringVar(&a.flags.Bucket, "bucket", "", "Artifact bucket URL, e.g. s3://bucket, overrides --data-dir")

	root.AddCommand(
		newDownloadCmd(a),
		newMergeCmd(a),
		newEnrichCmd(a),
		newServeCmd(a),
		newStatesCmd(a),
		newExportCmd(a),
		newValidateCmd(a),
		newFixCmd(a),
		newDeleteCmd(a),
	)
	return root
}

func initSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
}

// loadConfig resolves defaults, the config file, .env and the environment,
// then flags, in that order.
func (a *app) loadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(a.configPath); err != nil {
			return invalidArgs(err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return invalidArgs(err)
	}
	cfg = cfg.Merge(a.flags)
	if err := cfg.Validate(); err != nil {
		return invalidArgs(err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) openStore(cmd *cobra.Command) (*store.Store, error) {
	st, err := a.cfg.OpenStore(cmd.Context())
	if err != nil {
		return nil, storageError(err)
	}
	return st, nil
}

func (a *app) client(stage config.StageConfig) *aictehttp.Client {
	return aictehttp.NewClient(a.cfg.Client(stage))
}

// reporter returns a started progress reporter, or nil without --progress.
func (a *app) reporter(title, unit string, total, workers int) *progress.Reporter {
	if !a.progress {
		return nil
	}
	r := progress.NewReporter(progress.Options{
		Title:   title,
		Unit:    unit,
		Total:   total,
		Workers: workers,
		Output:  os.Stderr,
	})
	r.Start()
	return r
}
