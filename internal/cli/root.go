// Package cli implements the friendlink command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ZanzyTHEbar/friendlink-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/friendlink-go/internal/config"
	"github.com/ZanzyTHEbar/friendlink-go/internal/logging"
	"github.com/ZanzyTHEbar/friendlink-go/internal/metrics"
	"github.com/ZanzyTHEbar/friendlink-go/pkg/friendlink"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries state shared by all subcommands once the root pre-run has
// loaded configuration.
type app struct {
	cfgFile   string
	graphURL  string
	modelURL  string
	authToken string
	logLevel  string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "friendlink",
		Short:         "Graph embedding friend recommender",
		Long:          "friendlink learns node2vec embeddings from a typed user/interest graph and serves connection recommendations over MCP.",
		Version:       fmt.Sprintf("%s (%s, %s)", buildinfo.Version, buildinfo.Revision, buildinfo.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: $FRIENDLINK_CONFIG or ./friendlink.yaml)")
	flags.StringVar(&a.graphURL, "graph-url", "", "libSQL URL of the graph artifact")
	flags.StringVar(&a.modelURL, "model-url", "", "libSQL URL of the model artifact")
	flags.StringVar(&a.authToken, "auth-token", "", "authentication token for remote libSQL databases")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newTrainCmd(a),
		newServeCmd(a),
		newRecommendCmd(a),
		newGraphCmd(a),
	)
	return rootCmd
}

// Execute runs the command tree with ctx, reporting failures on stderr.
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		// Avoid reporting cancellation during graceful shutdown as a failure.
		if ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("graph-url") {
		cfg.Database.GraphURL = a.graphURL
	}
	if flags.Changed("model-url") {
		cfg.Database.ModelURL = a.modelURL
	}
	if flags.Changed("auth-token") {
		cfg.Database.AuthToken = a.authToken
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.Initialize(cfg.Log)
	if err := metrics.Init(cfg.Metrics); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.logger.Debug("Configuration loaded",
		zap.String("graph_url", cfg.Database.GraphURL),
		zap.String("model_url", cfg.Database.ModelURL),
	)
	return nil
}

func (a *app) openService() (*friendlink.Service, error) {
	db := a.cfg.Database
	return friendlink.Open(&friendlink.Config{
		GraphURL:       db.GraphURL,
		ModelURL:       db.ModelURL,
		AuthToken:      db.AuthToken,
		MaxOpenConns:   db.MaxOpenConns,
		MaxIdleConns:   db.MaxIdleConns,
		ConnMaxIdleSec: db.ConnMaxIdleSec,
		ConnMaxLifeSec: db.ConnMaxLifeSec,
		Overfetch:      a.cfg.Recommend.Overfetch,
	}, a.logger)
}

func (a *app) closeService(svc *friendlink.Service) {
	if err := svc.Close(); err != nil {
		a.logger.Warn("Error closing artifacts", zap.Error(err))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
