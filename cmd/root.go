// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-backfill/internal/config"
	"github.com/naka-gawa/github-backfill/internal/logsink"
)

var rootCmd = &cobra.Command{
	Use:   "github-backfill",
	Short: "A CLI tool to backfill a repository with dated history.",
	Long: `github-backfill populates a git working tree and its GitHub remote with
commits, issues and merged pull requests spread over a range of months.
Commit and merge dates are forced to synthetic timestamps inside the range.

Settings come from flags, environment variables (GITHUB_TOKEN, REPO_OWNER,
REPO_NAME, BASE_BRANCH, USER_EMAIL, ...) and an optional .env file.`,
	SilenceUsage: true,
}

// flagKeys maps flags whose name differs from their configuration key.
var flagKeys = map[string]string{
	"owner":   config.KeyRepoOwner,
	"repo":    config.KeyRepoName,
	"timeout": config.KeyCommandTimeout,
	"commits": config.KeyCommitsPerMonth,
	"prs":     config.KeyPRsPerMonth,
	"count":   config.KeyIssueCount,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (default: ./.env when present)")
	rootCmd.PersistentFlags().String("work-dir", ".", "Git working tree to operate on")
	rootCmd.PersistentFlags().Duration("timeout", config.DefaultCommandTimeout, "Timeout of a single git command")
	rootCmd.PersistentFlags().String("owner", "", "Repository owner (REPO_OWNER)")
	rootCmd.PersistentFlags().String("repo", "", "Repository name (REPO_NAME)")
	rootCmd.PersistentFlags().String("base-branch", "main", "Base branch (BASE_BRANCH)")
	rootCmd.PersistentFlags().String("remote", "origin", "Git remote to pull from and push to")
}

// addScheduleFlags registers the month range and hour window flags on c.
func addScheduleFlags(c *cobra.Command) {
	c.Flags().Int("year", 0, "Year of the synthetic history (default: current year)")
	c.Flags().Int("start-month", 1, "First month of the range (1-12)")
	c.Flags().Int("end-month", 12, "Last month of the range (1-12)")
	c.Flags().Int("start-hour", -1, "Earliest hour of a synthetic timestamp (default depends on the batch)")
	c.Flags().Int("end-hour", -1, "Latest hour of a synthetic timestamp (default depends on the batch)")
	c.Flags().String("timezone", "Local", "IANA time zone of synthetic timestamps")
}

// session is everything a subcommand needs to execute one run.
type session struct {
	runID  string
	cfg    *config.Config
	logger *logrus.Logger
	sink   *logsink.Sink
}

// newSession loads the env file and the configuration of the executing
// command and wires the logger through the log sink.
func newSession(cmd *cobra.Command) (*session, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile, envFile != ""); err != nil {
		return nil, err
	}

	v := viper.New()
	config.SetDefaults(v)
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	runID := uuid.New().String()
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.AddHook(runIDHook(runID))
	sink := logsink.New(cmd.ErrOrStderr(), &logrus.TextFormatter{FullTimestamp: true})
	sink.Attach(logger)

	return &session{runID: runID, cfg: cfg, logger: logger, sink: sink}, nil
}

// bindFlags binds every flag of the executing command, inherited ones
// included, to its configuration key. Only flags set on the command line
// override the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "verbose", "env-file", "help":
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if !f.Changed {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// runIDHook tags every log entry of a run with its id.
type runIDHook string

func (h runIDHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h runIDHook) Fire(entry *logrus.Entry) error {
	entry.Data["run_id"] = string(h)
	return nil
}
