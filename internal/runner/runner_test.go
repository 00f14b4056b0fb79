package runner

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_Run(t *testing.T) {
	requireShell(t)

	testCases := []struct {
		name         string
		cmd          Command
		succeeded    bool
		exitCode     int
		stdout       string
		stderrSubstr string
	}{
		{
			name:      "success captures stdout",
			cmd:       Command{Description: "echo", Name: "sh", Args: []string{"-c", "echo hello"}},
			succeeded: true,
			stdout:    "hello\n",
		},
		{
			name:         "non-zero exit is a failure with stderr",
			cmd:          Command{Name: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}},
			succeeded:    false,
			exitCode:     3,
			stderrSubstr: "broken",
		},
		{
			name:      "env overlay reaches the process",
			cmd:       Command{Name: "sh", Args: []string{"-c", "printf %s \"$BACKFILL_TEST_VALUE\""}, Env: map[string]string{"BACKFILL_TEST_VALUE": "2024-03-01T10:00:00Z"}},
			succeeded: true,
			stdout:    "2024-03-01T10:00:00Z",
		},
		{
			name:      "missing binary is a failure, not a panic",
			cmd:       Command{Name: "definitely-not-a-real-binary-xyz"},
			succeeded: false,
			exitCode:  -1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := NewExecRunner().Run(context.Background(), tc.cmd)
			assert.Equal(t, tc.succeeded, res.Succeeded)
			assert.Equal(t, tc.exitCode, res.ExitCode)
			if tc.stdout != "" {
				assert.Equal(t, tc.stdout, res.Stdout)
			}
			if tc.stderrSubstr != "" {
				assert.Contains(t, res.Stderr, tc.stderrSubstr)
			}
			if !tc.succeeded {
				assert.Error(t, res.Err)
			}
			assert.NotEmpty(t, res.Description)
		})
	}
}

func TestExecRunner_TimeoutIsFailure(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(WithTimeout(100 * time.Millisecond))

	start := time.Now()
	res := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "sleep 5"}})

	assert.False(t, res.Succeeded)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunner_CancelledContextDoesNotInterrupt(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewExecRunner().Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 0.2; echo done"}})

	assert.True(t, res.Succeeded)
	assert.Equal(t, "done", strings.TrimSpace(res.Stdout))
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "GIT_AUTHOR_DATE=stale", "HOME=/root"}
	merged := MergeEnv(base, map[string]string{
		"GIT_COMMITTER_DATE": "2024-01-01T00:00:00Z",
		"GIT_AUTHOR_DATE":    "2024-01-01T00:00:00Z",
	})
	assert.Equal(t, []string{
		"PATH=/bin",
		"HOME=/root",
		"GIT_AUTHOR_DATE=2024-01-01T00:00:00Z",
		"GIT_COMMITTER_DATE=2024-01-01T00:00:00Z",
	}, merged)

	// The base slice is left untouched.
	assert.Equal(t, "GIT_AUTHOR_DATE=stale", base[1])
	assert.Equal(t, base, MergeEnv(base, nil))
}
