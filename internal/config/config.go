// Package config loads run settings from flags, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

// Keys shared by viper, the environment (upper-cased) and cobra flags.
const (
	KeyGitHubToken     = "github_token"
	KeyRepoOwner       = "repo_owner"
	KeyRepoName        = "repo_name"
	KeyBaseBranch      = "base_branch"
	KeyRemote          = "remote"
	KeyUserName        = "user_name"
	KeyUserEmail       = "user_email"
	KeyWorkDir         = "work_dir"
	KeyYear            = "year"
	KeyStartMonth      = "start_month"
	KeyEndMonth        = "end_month"
	KeyStartHour       = "start_hour"
	KeyEndHour         = "end_hour"
	KeyTimezone        = "timezone"
	KeyCommandTimeout  = "command_timeout"
	KeyAPITimeout      = "api_timeout"
	KeyWriteRate       = "write_rate"
	KeyFailFast        = "fail_fast"
	KeyCommitsPerMonth = "commits_per_month"
	KeyPRsPerMonth     = "prs_per_month"
	KeyIssueCount      = "issue_count"
	KeyVerify          = "verify"
	KeyMarkerFile      = "marker_file"
)

// Defaults of the timeouts of a run.
const (
	DefaultCommandTimeout = 2 * time.Minute
	DefaultAPITimeout     = 30 * time.Second
)

// Config holds every setting of a run. It is loaded once at the CLI boundary.
type Config struct {
	GitHubToken string
	RepoOwner   string
	RepoName    string
	BaseBranch  string
	Remote      string
	UserName    string
	UserEmail   string
	WorkDir     string

	Year       int
	StartMonth int
	EndMonth   int
	// StartHour and EndHour bound synthetic timestamps, inclusive. Negative
	// values mean the default window of the batch.
	StartHour int
	EndHour   int
	Timezone  string

	CommandTimeout time.Duration
	APITimeout     time.Duration
	// WriteRate is the number of content-creating API calls per second.
	WriteRate float64
	FailFast  bool
	Verify    bool

	MarkerFile      string
	CommitsPerMonth int
	PRsPerMonth     int
	IssueCount      int
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseBranch, "main")
	v.SetDefault(KeyRemote, "origin")
	v.SetDefault(KeyWorkDir, ".")
	v.SetDefault(KeyYear, time.Now().Year())
	v.SetDefault(KeyStartMonth, 1)
	v.SetDefault(KeyEndMonth, 12)
	v.SetDefault(KeyStartHour, -1)
	v.SetDefault(KeyEndHour, -1)
	v.SetDefault(KeyTimezone, "Local")
	v.SetDefault(KeyCommandTimeout, DefaultCommandTimeout)
	v.SetDefault(KeyAPITimeout, DefaultAPITimeout)
	v.SetDefault(KeyWriteRate, 1.0)
	v.SetDefault(KeyCommitsPerMonth, 1)
	v.SetDefault(KeyPRsPerMonth, 1)
	v.SetDefault(KeyIssueCount, 1)
}

// LoadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing default .env is not an error.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration out of v. Environment variables are matched by
// the upper-cased key, e.g. GITHUB_TOKEN or REPO_OWNER.
func Load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	cfg := &Config{
		GitHubToken:     v.GetString(KeyGitHubToken),
		RepoOwner:       v.GetString(KeyRepoOwner),
		RepoName:        v.GetString(KeyRepoName),
		BaseBranch:      v.GetString(KeyBaseBranch),
		Remote:          v.GetString(KeyRemote),
		UserName:        v.GetString(KeyUserName),
		UserEmail:       v.GetString(KeyUserEmail),
		WorkDir:         v.GetString(KeyWorkDir),
		Year:            v.GetInt(KeyYear),
		StartMonth:      v.GetInt(KeyStartMonth),
		EndMonth:        v.GetInt(KeyEndMonth),
		StartHour:       v.GetInt(KeyStartHour),
		EndHour:         v.GetInt(KeyEndHour),
		Timezone:        v.GetString(KeyTimezone),
		CommandTimeout:  v.GetDuration(KeyCommandTimeout),
		APITimeout:      v.GetDuration(KeyAPITimeout),
		WriteRate:       v.GetFloat64(KeyWriteRate),
		FailFast:        v.GetBool(KeyFailFast),
		Verify:          v.GetBool(KeyVerify),
		MarkerFile:      v.GetString(KeyMarkerFile),
		CommitsPerMonth: v.GetInt(KeyCommitsPerMonth),
		PRsPerMonth:     v.GetInt(KeyPRsPerMonth),
		IssueCount:      v.GetInt(KeyIssueCount),
	}
	if cfg.UserName == "" {
		cfg.UserName = cfg.RepoOwner
	}
	if cfg.UserEmail == "" && cfg.RepoOwner != "" {
		cfg.UserEmail = cfg.RepoOwner + "@users.noreply.github.com"
	}
	return cfg, nil
}

// Target returns the repository the run acts on.
func (c *Config) Target() domain.RepositoryTarget {
	return domain.RepositoryTarget{
		Owner:      c.RepoOwner,
		Name:       c.RepoName,
		BaseBranch: c.BaseBranch,
		Remote:     c.Remote,
		Token:      c.GitHubToken,
		Committer:  domain.Committer{Name: c.UserName, Email: c.UserEmail},
	}
}

// Range returns the month range of the run.
func (c *Config) Range() domain.DateRange {
	return domain.DateRange{Year: c.Year, StartMonth: c.StartMonth, EndMonth: c.EndMonth}
}

// Hours returns the configured hour window, or fallback when none is set.
func (c *Config) Hours(fallback domain.HourWindow) domain.HourWindow {
	if c.StartHour < 0 && c.EndHour < 0 {
		return fallback
	}
	w := fallback
	if c.StartHour >= 0 {
		w.Start = c.StartHour
	}
	if c.EndHour >= 0 {
		w.End = c.EndHour
	}
	return w
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, domain.NewValidationError(KeyTimezone, err)
	}
	return loc, nil
}

func (c *Config) validateRepository() error {
	if c.RepoOwner == "" {
		return domain.NewValidationError(KeyRepoOwner, errors.New("REPO_OWNER is not set"))
	}
	if c.RepoName == "" {
		return domain.NewValidationError(KeyRepoName, errors.New("REPO_NAME is not set"))
	}
	if c.BaseBranch == "" {
		return domain.NewValidationError(KeyBaseBranch, errors.New("must not be empty"))
	}
	return nil
}

func (c *Config) validateToken() error {
	if c.GitHubToken == "" {
		return domain.NewValidationError(KeyGitHubToken, errors.New("GITHUB_TOKEN is not set"))
	}
	return nil
}

func (c *Config) validateSchedule(fallback domain.HourWindow) error {
	if err := c.Range().Validate(); err != nil {
		return err
	}
	if err := c.Hours(fallback).Validate(); err != nil {
		return err
	}
	_, err := c.Location()
	return err
}

func validateCount(key string, n, max int) error {
	if n < 0 || n > max {
		return domain.NewValidationError(key, fmt.Errorf("%d is outside 0..%d", n, max))
	}
	return nil
}

// ValidateCommits checks the settings of a commit batch.
func (c *Config) ValidateCommits() error {
	if err := c.validateRepository(); err != nil {
		return err
	}
	if c.Verify {
		if err := c.validateToken(); err != nil {
			return err
		}
	}
	if err := c.validateSchedule(domain.FullDay); err != nil {
		return err
	}
	return validateCount(KeyCommitsPerMonth, c.CommitsPerMonth, domain.MaxCommitsPerMonth)
}

// ValidatePRs checks the settings of a pull request batch.
func (c *Config) ValidatePRs() error {
	if err := c.validateRepository(); err != nil {
		return err
	}
	if err := c.validateToken(); err != nil {
		return err
	}
	if err := c.validateSchedule(domain.BusinessHours); err != nil {
		return err
	}
	return validateCount(KeyPRsPerMonth, c.PRsPerMonth, domain.MaxPRsPerMonth)
}

// ValidateIssues checks the settings of an issue batch.
func (c *Config) ValidateIssues() error {
	if err := c.validateRepository(); err != nil {
		return err
	}
	if err := c.validateToken(); err != nil {
		return err
	}
	return validateCount(KeyIssueCount, c.IssueCount, domain.MaxIssues)
}
