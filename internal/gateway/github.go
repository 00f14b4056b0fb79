// Package gateway provides gateways to the external collaborators of a run:
// the GitHub API (REST and GraphQL) and the local git working tree.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// DefaultAPITimeout bounds a single API call.
const DefaultAPITimeout = 30 * time.Second

// IssueRequest is the payload of an issue creation.
type IssueRequest struct {
	Title string
	Body  string
}

// PullRequestRequest is the payload of a pull request creation.
type PullRequestRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// CreatedIssue is the part of the creation response the creators consume.
type CreatedIssue struct {
	Number     int
	HTMLURL    string
	StatusCode int
}

// CreatedPullRequest is the part of the creation response the orchestrator consumes.
type CreatedPullRequest struct {
	Number     int
	HTMLURL    string
	StatusCode int
}

// RepositoryInfo is the result of the repository pre-flight query.
type RepositoryInfo struct {
	NameWithOwner string
	Permission    string
	HasBaseBranch bool
}

// APIError is returned when GitHub answers with an unexpected status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api returned status %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status code from an API error, or 0 if the
// request never got a response.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Tracker defines the remote tracking operations used by a run.
type Tracker interface {
	CreateIssue(ctx context.Context, owner, repo string, req IssueRequest) (*CreatedIssue, error)
	CreatePullRequest(ctx context.Context, owner, repo string, req PullRequestRequest) (*CreatedPullRequest, error)
	VerifyRepository(ctx context.Context, owner, repo, branch string) (*RepositoryInfo, error)
}

// GitHubGateway is the concrete implementation of the Tracker interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	writeLimiter  *rate.Limiter
	timeout       time.Duration
	logger        *logrus.Logger
}

// GitHubOption configures a GitHubGateway.
type GitHubOption func(*GitHubGateway)

// WithWriteRate paces content-creating requests. GitHub asks integrations to
// keep at least a second between them.
func WithWriteRate(limit rate.Limit, burst int) GitHubOption {
	return func(g *GitHubGateway) { g.writeLimiter = rate.NewLimiter(limit, burst) }
}

// WithAPITimeout bounds each API call.
func WithAPITimeout(d time.Duration) GitHubOption {
	return func(g *GitHubGateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *logrus.Logger, opts ...GitHubOption) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return newGitHubGateway(github.NewClient(httpClient), githubv4.NewClient(httpClient), logger, opts...), nil
}

func newGitHubGateway(rest *github.Client, gql *githubv4.Client, logger *logrus.Logger, opts ...GitHubOption) *GitHubGateway {
	g := &GitHubGateway{
		restClient:    rest,
		graphqlClient: gql,
		writeLimiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		timeout:       DefaultAPITimeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// callContext detaches the call from caller cancellation so a request that
// has started is never interrupted; only the per-call timeout applies.
func (g *GitHubGateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
}

func (g *GitHubGateway) waitWrite(ctx context.Context) error {
	if err := g.writeLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// CreateIssue submits one issue. Only 201 Created counts as success.
func (g *GitHubGateway) CreateIssue(ctx context.Context, owner, repo string, req IssueRequest) (*CreatedIssue, error) {
	if err := g.waitWrite(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	g.logger.WithField("title", req.Title).Debug("Creating issue via REST API...")
	issue, resp, err := g.restClient.Issues.Create(callCtx, owner, repo, &github.IssueRequest{
		Title: github.String(req.Title),
		Body:  github.String(req.Body),
	})
	if err != nil {
		return nil, wrapAPIError("failed to create issue", resp, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "unexpected status creating issue"}
	}
	return &CreatedIssue{
		Number:     issue.GetNumber(),
		HTMLURL:    issue.GetHTMLURL(),
		StatusCode: resp.StatusCode,
	}, nil
}

// CreatePullRequest opens a pull request from req.Head into req.Base.
func (g *GitHubGateway) CreatePullRequest(ctx context.Context, owner, repo string, req PullRequestRequest) (*CreatedPullRequest, error) {
	if err := g.waitWrite(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	g.logger.WithField("head", req.Head).Debug("Opening pull request via REST API...")
	pr, resp, err := g.restClient.PullRequests.Create(callCtx, owner, repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Body:  github.String(req.Body),
	})
	if err != nil {
		return nil, wrapAPIError("failed to create pull request", resp, err)
	}
	if pr.GetNumber() == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "pull request response carried no number"}
	}
	return &CreatedPullRequest{
		Number:     pr.GetNumber(),
		HTMLURL:    pr.GetHTMLURL(),
		StatusCode: resp.StatusCode,
	}, nil
}

// repositoryQuery checks access to the repository and the existence of the base branch.
type repositoryQuery struct {
	Repository struct {
		NameWithOwner    string
		ViewerPermission githubv4.RepositoryPermission
		Ref              struct {
			Name string
		} `graphql:"ref(qualifiedName: $ref)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// VerifyRepository runs the pre-flight GraphQL query. It fails when the
// repository is not reachable, the credential cannot write to it, or branch
// (when not empty) does not exist.
func (g *GitHubGateway) VerifyRepository(ctx context.Context, owner, repo, branch string) (*RepositoryInfo, error) {
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	ref := "refs/heads/" + branch
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
		"ref":   githubv4.String(ref),
	}
	var q repositoryQuery
	if err := g.graphqlClient.Query(callCtx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for repository: %w", err)
	}
	info := &RepositoryInfo{
		NameWithOwner: q.Repository.NameWithOwner,
		Permission:    string(q.Repository.ViewerPermission),
		HasBaseBranch: q.Repository.Ref.Name != "",
	}
	if info.NameWithOwner == "" {
		return nil, fmt.Errorf("repository %s/%s not found", owner, repo)
	}
	switch q.Repository.ViewerPermission {
	case githubv4.RepositoryPermissionAdmin, githubv4.RepositoryPermissionMaintain, githubv4.RepositoryPermissionWrite:
	default:
		return info, fmt.Errorf("credential has %q permission on %s, write access is required", info.Permission, info.NameWithOwner)
	}
	if branch != "" && !info.HasBaseBranch {
		return info, fmt.Errorf("base branch %q does not exist on %s", branch, info.NameWithOwner)
	}
	g.logger.WithField("repository", info.NameWithOwner).Debug("Repository pre-flight passed.")
	return info, nil
}

func wrapAPIError(msg string, resp *github.Response, err error) error {
	if resp != nil && resp.Response != nil {
		return fmt.Errorf("%s: %w", msg, &APIError{StatusCode: resp.StatusCode, Message: err.Error()})
	}
	return fmt.Errorf("%s: %w", msg, err)
}
