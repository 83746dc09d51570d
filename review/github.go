package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
)

// GitHubHost implements Host against the GitHub REST API.
//
// One instance is created per process and injected into the workflow,
// never accessed as ambient global state.
//
// Example usage:
//
//	host, err := review.NewGitHubHost("octocat/hello-world", os.Getenv("GITHUB_TOKEN"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer host.Close()
type GitHubHost struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubHost creates a GitHub-backed Host for the given
// "owner/repo" repository. An empty token yields an anonymous client,
// which is subject to much lower rate limits.
func NewGitHubHost(repository, token string) (*GitHubHost, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository must be in owner/repo form, got %q", repository)
	}

	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubHost{client: client, owner: owner, repo: repo}, nil
}

// PullRequest implements Host.
func (h *GitHubHost) PullRequest(ctx context.Context, number int) (PRDetails, error) {
	pr, _, err := h.client.PullRequests.Get(ctx, h.owner, h.repo, number)
	if err != nil {
		return PRDetails{}, fmt.Errorf("get pull request %d: %w", number, err)
	}

	details := PRDetails{
		Author:  pr.GetUser().GetLogin(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		DiffURL: pr.GetDiffURL(),
		State:   pr.GetState(),
	}

	commits, _, err := h.client.PullRequests.ListCommits(ctx, h.owner, h.repo, number, &github.ListOptions{PerPage: 100})
	if err != nil {
		return PRDetails{}, fmt.Errorf("list commits for pull request %d: %w", number, err)
	}
	for _, c := range commits {
		details.CommitSHAs = append(details.CommitSHAs, c.GetSHA())
	}
	return details, nil
}

// CommitChanges implements Host.
func (h *GitHubHost) CommitChanges(ctx context.Context, sha string) ([]CommitChange, error) {
	commit, _, err := h.client.Repositories.GetCommit(ctx, h.owner, h.repo, sha, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", sha, err)
	}

	changes := make([]CommitChange, 0, len(commit.Files))
	for _, f := range commit.Files {
		changes = append(changes, CommitChange{
			Path:      f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Changes:   f.GetChanges(),
			Patch:     f.GetPatch(),
			Ref:       sha,
		})
	}
	return changes, nil
}

// FileAtRevision implements Host. Directories and non-file content
// report absence rather than an error.
func (h *GitHubHost) FileAtRevision(ctx context.Context, path, ref string) (string, bool, error) {
	file, dir, _, err := h.client.Repositories.GetContents(ctx, h.owner, h.repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", false, fmt.Errorf("get contents of %s at %s: %w", path, ref, err)
	}
	if dir != nil || file == nil || file.GetType() != "file" {
		return "", false, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("decode contents of %s at %s: %w", path, ref, err)
	}
	return content, true, nil
}

// PostReview implements Host, creating a COMMENT review on the pull
// request.
func (h *GitHubHost) PostReview(ctx context.Context, number int, body string) error {
	clog.InfoContextf(ctx, "posting review on %s/%s#%d", h.owner, h.repo, number)

	_, _, err := h.client.PullRequests.CreateReview(ctx, h.owner, h.repo, number, &github.PullRequestReviewRequest{
		Body:  github.Ptr(body),
		Event: github.Ptr("COMMENT"),
	})
	if err != nil {
		return fmt.Errorf("create review on pull request %d: %w", number, err)
	}
	return nil
}

// Close implements Host. The underlying HTTP client holds no
// long-lived connections that need explicit shutdown.
func (h *GitHubHost) Close() error {
	return nil
}
