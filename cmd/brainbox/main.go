// Command brainbox is the terminal client for a BrainBox server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/brainbox-app/brainbox/internal/config"
	"github.com/brainbox-app/brainbox/internal/confirm"
	"github.com/brainbox-app/brainbox/internal/engine"
	"github.com/brainbox-app/brainbox/internal/metrics"
	"github.com/brainbox-app/brainbox/internal/remote"
	"github.com/brainbox-app/brainbox/internal/session"
	"github.com/brainbox-app/brainbox/pkg/logging"
)

var (
	configPath string
	serverURL  string
	outputFmt  string
	assumeYes  bool
	verbose    bool
	showStats  bool

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	registry  = prometheus.NewRegistry()
	syncStats = metrics.NewSync(registry)

	timeNow = time.Now
)

var rootCmd = &cobra.Command{
	Use:   "brainbox",
	Short: "Student productivity hub: classes, budget, tasks, skills, exams and a shared feed",
	Long: `brainbox talks to a BrainBox server on behalf of the signed-in user.

Sign in once with "brainbox login"; credentials are kept in a YAML file under
your config directory. Every list, add, edit and delete is scoped to your account.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		loaded, _, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if serverURL != "" {
			cfg.Client.Server = serverURL
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		lv := new(slog.LevelVar)
		lv.Set(logging.ParseLevel(level))
		logger, logCloser = logging.New(logging.Options{
			Level:      lv,
			Format:     cfg.Log.Format,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats {
			printStats(cmd.ErrOrStderr())
		}
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./brainbox.yaml or <config dir>/brainbox/brainbox.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (overrides client.server)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format: table, yaml or json")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to delete confirmations")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print cache and mutation counters on exit")

	rootCmd.AddGroup(
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "data", Title: "Your data:"},
		&cobra.Group{ID: "feed", Title: "Feed:"},
		&cobra.Group{ID: "study", Title: "Study tools:"},
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

func credentialsPath() string {
	if cfg != nil && cfg.Client.Credentials != "" {
		return cfg.Client.Credentials
	}
	return session.DefaultPath()
}

func httpClient() *http.Client {
	return &http.Client{Timeout: cfg.Client.Timeout}
}

// requireSession loads the stored credentials.
func requireSession() (*session.Session, error) {
	sess, err := session.Load(credentialsPath())
	if err != nil {
		return nil, err
	}
	if !sess.Valid(timeNow()) {
		return nil, fmt.Errorf("session expired, run \"brainbox login\"")
	}
	return sess, nil
}

// newEngine builds the engine for the stored session.
func newEngine() (*engine.Engine, *session.Session, error) {
	sess, err := requireSession()
	if err != nil {
		return nil, nil, err
	}
	var gate confirm.Gate = confirm.Prompt{Title: "Delete?"}
	if assumeYes {
		gate = confirm.Static(true)
	}
	eng := engine.New(engine.Config{
		Remote:  remote.New(cfg.Client.Server, sess, remote.WithHTTPClient(httpClient()), remote.WithLogger(logger)),
		Gate:    gate,
		Logger:  logger,
		Metrics: syncStats,
	})
	return eng, sess, nil
}

// describe turns remote errors into a hint the user can act on.
func describe(err error) string {
	switch remote.KindOf(err) {
	case remote.Unauthorized:
		return err.Error() + " (run \"brainbox login\")"
	case remote.NetworkError:
		return err.Error() + " (is the server running?)"
	}
	return err.Error()
}

func printStats(w io.Writer) {
	families, err := registry.Gather()
	if err != nil {
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			if v := m.GetCounter().GetValue(); v > 0 {
				lines = append(lines, fmt.Sprintf("%s %g", name, v))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
