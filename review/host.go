// Package review implements a pull request review workflow on top of
// the flow orchestration engine.
//
// Three cooperating agents share a single state record: a context
// agent gathers pull request details, a commentor agent drafts the
// review, and a posting agent finalizes and publishes it. The GitHub
// surface is injected through the Host interface so the workflow can
// be tested without network access.
package review

import "context"

// PRDetails describes a pull request as seen by the review workflow.
//
// A degraded record (unknown author, empty CommitSHAs) is returned by
// the read tools when the host lookup fails, so the workflow can
// proceed with partial information.
type PRDetails struct {
	Author     string
	Title      string
	Body       string
	DiffURL    string
	State      string
	CommitSHAs []string
}

// CommitChange describes one changed file within a commit.
type CommitChange struct {
	Path      string
	Status    string
	Additions int
	Deletions int
	Changes   int
	Patch     string
	Ref       string
}

// Host is the source-control surface the review workflow reads from
// and posts to. Implementations must be safe for use across multiple
// runs.
//
// PostReview is the sole terminal write of a run. All other
// operations are reads.
type Host interface {
	// PullRequest returns the details of a pull request by number.
	PullRequest(ctx context.Context, number int) (PRDetails, error)

	// CommitChanges returns the files changed by the given commit.
	CommitChanges(ctx context.Context, sha string) ([]CommitChange, error)

	// FileAtRevision returns the content of a file at a commit. The
	// boolean reports whether the path names a regular file at that
	// revision.
	FileAtRevision(ctx context.Context, path, ref string) (string, bool, error)

	// PostReview publishes a review comment on the pull request.
	PostReview(ctx context.Context, number int, body string) error

	// Close releases any resources held by the host.
	Close() error
}
