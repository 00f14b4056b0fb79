package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

func newViper(t *testing.T, values map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func validConfig(t *testing.T, overrides map[string]any) *Config {
	t.Helper()
	values := map[string]any{
		KeyGitHubToken: "token",
		KeyRepoOwner:   "octocat",
		KeyRepoName:    "history",
		KeyYear:        2024,
	}
	for k, v := range overrides {
		values[k] = v
	}
	cfg, err := Load(newViper(t, values))
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := validConfig(t, nil)

	assert.Equal(t, "main", cfg.BaseBranch)
	assert.Equal(t, "origin", cfg.Remote)
	assert.Equal(t, ".", cfg.WorkDir)
	assert.Equal(t, 1, cfg.StartMonth)
	assert.Equal(t, 12, cfg.EndMonth)
	assert.Equal(t, 2*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.InDelta(t, 1.0, cfg.WriteRate, 1e-9)
	assert.Equal(t, "octocat", cfg.UserName, "committer name defaults to the owner")
	assert.Equal(t, "octocat@users.noreply.github.com", cfg.UserEmail)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("REPO_OWNER", "env-owner")
	t.Setenv("REPO_NAME", "env-repo")
	t.Setenv("BASE_BRANCH", "develop")
	t.Setenv("USER_EMAIL", "dev@example.com")
	t.Setenv("COMMAND_TIMEOUT", "45s")

	cfg, err := Load(newViper(t, nil))
	require.NoError(t, err)

	target := cfg.Target()
	assert.Equal(t, "env-token", target.Token)
	assert.Equal(t, "env-owner/env-repo", target.FullName())
	assert.Equal(t, "develop", target.BaseBranch)
	assert.Equal(t, domain.Committer{Name: "env-owner", Email: "dev@example.com"}, target.Committer)
	assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("REPO_NAME=from-file\nREPO_OWNER=file-owner\n"), 0o600))
	t.Setenv("REPO_OWNER", "already-set")
	// Registered for cleanup so the variable loaded from the file does not leak.
	t.Setenv("REPO_NAME", "")
	require.NoError(t, os.Unsetenv("REPO_NAME"))

	require.NoError(t, LoadEnvFile(path, true))

	assert.Equal(t, "from-file", os.Getenv("REPO_NAME"))
	assert.Equal(t, "already-set", os.Getenv("REPO_OWNER"), "existing variables win over the file")

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env"), false))
	assert.Error(t, LoadEnvFile(filepath.Join(dir, "missing.env"), true))
}

func TestConfig_Hours(t *testing.T) {
	cfg := validConfig(t, nil)
	assert.Equal(t, domain.BusinessHours, cfg.Hours(domain.BusinessHours))

	cfg = validConfig(t, map[string]any{KeyStartHour: 7})
	assert.Equal(t, domain.HourWindow{Start: 7, End: 23}, cfg.Hours(domain.FullDay))

	cfg = validConfig(t, map[string]any{KeyStartHour: 8, KeyEndHour: 20})
	assert.Equal(t, domain.HourWindow{Start: 8, End: 20}, cfg.Hours(domain.BusinessHours))
}

func TestConfig_Location(t *testing.T) {
	cfg := validConfig(t, nil)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg = validConfig(t, map[string]any{KeyTimezone: "UTC"})
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	cfg = validConfig(t, map[string]any{KeyTimezone: "Mars/Olympus_Mons"})
	_, err = cfg.Location()
	assert.True(t, domain.IsValidation(err))
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		overrides map[string]any
		validate  func(*Config) error
		wantErr   bool
	}{
		{name: "commits ok", validate: (*Config).ValidateCommits},
		{name: "commits without token ok", overrides: map[string]any{KeyGitHubToken: ""}, validate: (*Config).ValidateCommits},
		{name: "commits verify needs token", overrides: map[string]any{KeyGitHubToken: "", KeyVerify: true}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "commits at bound", overrides: map[string]any{KeyCommitsPerMonth: domain.MaxCommitsPerMonth}, validate: (*Config).ValidateCommits},
		{name: "commits above bound", overrides: map[string]any{KeyCommitsPerMonth: domain.MaxCommitsPerMonth + 1}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "negative commits", overrides: map[string]any{KeyCommitsPerMonth: -1}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "inverted months", overrides: map[string]any{KeyStartMonth: 9, KeyEndMonth: 3}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "month 13", overrides: map[string]any{KeyEndMonth: 13}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "year out of bound", overrides: map[string]any{KeyYear: 1969}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "hour out of range", overrides: map[string]any{KeyEndHour: 24}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "missing owner", overrides: map[string]any{KeyRepoOwner: ""}, validate: (*Config).ValidateCommits, wantErr: true},
		{name: "prs ok", overrides: map[string]any{KeyPRsPerMonth: domain.MaxPRsPerMonth}, validate: (*Config).ValidatePRs},
		{name: "prs above bound", overrides: map[string]any{KeyPRsPerMonth: domain.MaxPRsPerMonth + 1}, validate: (*Config).ValidatePRs, wantErr: true},
		{name: "prs need token", overrides: map[string]any{KeyGitHubToken: ""}, validate: (*Config).ValidatePRs, wantErr: true},
		{name: "issues ok", overrides: map[string]any{KeyIssueCount: domain.MaxIssues}, validate: (*Config).ValidateIssues},
		{name: "issues above bound", overrides: map[string]any{KeyIssueCount: domain.MaxIssues + 1}, validate: (*Config).ValidateIssues, wantErr: true},
		{name: "issues missing repo name", overrides: map[string]any{KeyRepoName: ""}, validate: (*Config).ValidateIssues, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t, tc.overrides)
			err := tc.validate(cfg)
			if tc.wantErr {
				assert.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
