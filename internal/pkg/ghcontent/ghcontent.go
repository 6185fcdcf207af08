// Package ghcontent talks to the GitHub repository contents API and exposes
// it as a store.Remote.
package ghcontent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

const tag = "github"

type Config struct {
	Token  string
	Owner  string
	Repo   string
	Branch string
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL string
}

// Client is a store.Remote backed by one repository.
type Client struct {
	gh     *github.Client
	owner  string
	repo   string
	branch string
	logger *zap.Logger
}

var _ store.Remote = (*Client)(nil)

// New builds a Client. A nil httpClient gets a zero http.Client, which sets
// no request timeout of its own.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.New("github owner and repo are required")
	}
	gh := github.NewClient(httpClient)
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		gh.BaseURL = u
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		gh:     gh,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		branch: cfg.Branch,
		logger: logger,
	}, nil
}

func (c *Client) getOptions() *github.RepositoryContentGetOptions {
	if c.branch == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: c.branch}
}

func (c *Client) GetFile(ctx context.Context, path string) (*store.File, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path, c.getOptions())
	if err != nil {
		return nil, classify(err)
	}
	if file == nil {
		return nil, apperr.NotFound("%s is a directory", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, apperr.Internal(tag, fmt.Errorf("decode %s: %w", path, err))
	}
	return &store.File{Path: path, SHA: file.GetSHA(), Content: content}, nil
}

func (c *Client) ListDir(ctx context.Context, path string) ([]store.Entry, error) {
	file, dir, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path, c.getOptions())
	if err != nil {
		return nil, classify(err)
	}
	if file != nil {
		return nil, apperr.NotFound("%s is not a directory", path)
	}

	entries := make([]store.Entry, 0, len(dir))
	for _, item := range dir {
		var typ store.EntryType
		switch item.GetType() {
		case "file":
			typ = store.EntryFile
		case "dir":
			typ = store.EntryDir
		default:
			continue
		}
		entries = append(entries, store.Entry{
			Name: item.GetName(),
			Path: item.GetPath(),
			SHA:  item.GetSHA(),
			Type: typ,
		})
	}
	return entries, nil
}

func (c *Client) PutFile(ctx context.Context, path, content, sha, message string) (*store.WriteResult, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: []byte(content),
	}
	if c.branch != "" {
		opts.Branch = github.Ptr(c.branch)
	}

	var (
		res *github.RepositoryContentResponse
		err error
	)
	if sha == "" {
		res, _, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
	} else {
		opts.SHA = github.Ptr(sha)
		res, _, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	}
	if err != nil {
		return nil, classify(err)
	}
	c.logger.Debug("put file", zap.String("path", path), zap.String("commit", res.Commit.GetSHA()))
	return &store.WriteResult{SHA: res.GetContent().GetSHA(), CommitSHA: res.Commit.GetSHA()}, nil
}

func (c *Client) DeleteFile(ctx context.Context, path, sha, message string) (*store.WriteResult, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		SHA:     github.Ptr(sha),
	}
	if c.branch != "" {
		opts.Branch = github.Ptr(c.branch)
	}
	res, _, err := c.gh.Repositories.DeleteFile(ctx, c.owner, c.repo, path, opts)
	if err != nil {
		return nil, classify(err)
	}
	c.logger.Debug("delete file", zap.String("path", path), zap.String("commit", res.Commit.GetSHA()))
	return &store.WriteResult{CommitSHA: res.Commit.GetSHA()}, nil
}

// classify maps GitHub API failures onto the error taxonomy. A 422 about a
// missing or wrong sha is a precondition failure and becomes CONFLICT.
func classify(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperr.TooMany(time.Until(rateErr.Rate.Reset.Time), "github rate limit exceeded")
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return apperr.TooMany(abuseErr.GetRetryAfter(), "github secondary rate limit exceeded")
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(respErr.Message), "sha") {
			status = http.StatusConflict
		}
		return apperr.FromStatus(tag, status, respErr.Message, err)
	}
	return apperr.Internal(tag, err)
}
