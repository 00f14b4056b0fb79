// Package usecase contains the business logic of the application: the
// commit scheduler, the issue batch creator and the pull request lifecycle
// orchestrator.
package usecase

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

// report writes one log line per external operation. Failures always surface
// with their diagnostic; successful output is only shown at debug level.
func report(entry *logrus.Entry, res domain.ExecutionResult) {
	fields := logrus.Fields{"op": res.Description, "duration": res.Duration.Round(1e6)}
	if !res.Succeeded {
		fields["exit_code"] = res.ExitCode
		entry.WithFields(fields).Errorf("Operation failed: %s", res.Diagnostic())
		return
	}
	e := entry.WithFields(fields)
	if out := strings.TrimSpace(res.Stdout); out != "" {
		e.Debugf("Operation succeeded: %s", out)
		return
	}
	e.Debug("Operation succeeded")
}
