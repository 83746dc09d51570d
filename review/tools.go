package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/dshills/agentflow-go/flow"
	"github.com/dshills/agentflow-go/flow/tool"
)

// Tool names registered by the review workflow.
const (
	ToolGetPRDetails     = "get_pr_details"
	ToolGetCommitDetails = "get_commit_details"
	ToolGetFileContent   = "get_file_content"
	ToolAddContext       = "add_gathered_context_to_state"
	ToolAddDraft         = "add_draft_comment_to_state"
	ToolAddFinalReview   = "add_final_review_to_state"
	ToolPostReview       = "post_final_review_to_github"
)

// State keys written by the review tools.
const (
	KeyGatheredContext = "gathered_context"
	KeyDraftComment    = "draft_comment"
	KeyFinalReview     = "final_review_comment"
	KeyReviewPosted    = "review_posted"
)

// DefaultPostRetry bounds retries of the terminal posting call. The
// bound is deliberately small so a flaky host cannot cause duplicate
// postings through excessive retrying.
var DefaultPostRetry = flow.RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// hostTool adapts a function to the tool.Tool interface.
type hostTool struct {
	spec  tool.Spec
	class string
	fn    func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func (t *hostTool) Spec() tool.Spec { return t.spec }
func (t *hostTool) Class() string   { return t.class }

func (t *hostTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	return t.fn(ctx, args)
}

// Tools builds the seven review tools bound to the given host. The
// postRetry policy bounds retries of the terminal posting call; pass
// DefaultPostRetry unless the caller needs different bounds.
func Tools(host Host, postRetry flow.RetryPolicy) []tool.Tool {
	return []tool.Tool{
		getPRDetailsTool(host),
		getCommitDetailsTool(host),
		getFileContentTool(host),
		stateTool(ToolAddContext, KeyGatheredContext,
			"Store a natural-language summary of all gathered PR information in shared state so other agents can use it."),
		stateTool(ToolAddDraft, KeyDraftComment,
			"Save the draft review comment into the shared state."),
		stateTool(ToolAddFinalReview, KeyFinalReview,
			"Store the final PR review comment in shared state so the workflow can track and finalize the review."),
		postReviewTool(host, postRetry),
	}
}

// newRegistry registers the review tools into a fresh registry.
func newRegistry(host Host, postRetry flow.RetryPolicy) (*tool.Registry, error) {
	registry := tool.NewRegistry()
	for _, t := range Tools(host, postRetry) {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func getPRDetailsTool(host Host) tool.Tool {
	return &hostTool{
		spec: tool.Spec{
			Name:        ToolGetPRDetails,
			Description: "Retrieve details of a pull request by number: author, title, body, diff URL, state, and commit SHAs. The body is not reliable for detecting changed files; call get_commit_details for each SHA instead.",
			Params: []tool.Param{
				{Name: "pr_number", Type: "integer", Description: "The pull request number.", Required: true},
			},
		},
		class: tool.ClassReadExternal,
		fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			number, err := intArg(args, "pr_number")
			if err != nil {
				return nil, err
			}

			details, err := host.PullRequest(ctx, number)
			if err != nil {
				// Degrade to an unknown record so the run can continue
				// with partial information.
				clog.WarnContextf(ctx, "pull request lookup failed, returning degraded details: %v", err)
				details = PRDetails{Author: "unknown", Title: "unknown", DiffURL: "unknown", State: "unknown"}
			}

			shas := details.CommitSHAs
			if shas == nil {
				shas = []string{}
			}
			return map[string]any{
				"author":      details.Author,
				"title":       details.Title,
				"body":        details.Body,
				"diff_url":    details.DiffURL,
				"state":       details.State,
				"commit_shas": shas,
			}, nil
		},
	}
}

func getCommitDetailsTool(host Host) tool.Tool {
	return &hostTool{
		spec: tool.Spec{
			Name:        ToolGetCommitDetails,
			Description: "Retrieve the changed files for a commit SHA: path, status, line stats, and unified diff patch. Each entry carries the ref to pass to get_file_content.",
			Params: []tool.Param{
				{Name: "sha", Type: "string", Description: "The commit SHA to inspect.", Required: true},
			},
		},
		class: tool.ClassReadExternal,
		fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			sha, err := stringArg(args, "sha")
			if err != nil {
				return nil, err
			}

			changes, err := host.CommitChanges(ctx, sha)
			if err != nil {
				clog.WarnContextf(ctx, "commit lookup failed, returning empty change list: %v", err)
				changes = nil
			}

			files := make([]any, 0, len(changes))
			for _, c := range changes {
				files = append(files, map[string]any{
					"filename":  c.Path,
					"status":    c.Status,
					"additions": c.Additions,
					"deletions": c.Deletions,
					"changes":   c.Changes,
					"patch":     c.Patch,
					"ref":       c.Ref,
				})
			}
			return map[string]any{"files": files}, nil
		},
	}
}

func getFileContentTool(host Host) tool.Tool {
	return &hostTool{
		spec: tool.Spec{
			Name:        ToolGetFileContent,
			Description: "Retrieve the contents of a file at a specific commit SHA. Returns found=false when the path is missing, a directory, or not a regular file at that ref.",
			Params: []tool.Param{
				{Name: "path", Type: "string", Description: "Full file path, exactly as returned by get_commit_details.", Required: true},
				{Name: "ref", Type: "string", Description: "Commit SHA to fetch the file from.", Required: true},
			},
		},
		class: tool.ClassReadExternal,
		fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return nil, err
			}
			ref, err := stringArg(args, "ref")
			if err != nil {
				return nil, err
			}

			content, found, err := host.FileAtRevision(ctx, path, ref)
			if err != nil {
				clog.WarnContextf(ctx, "file lookup failed, reporting absent: %v", err)
				content, found = "", false
			}
			return map[string]any{"content": content, "found": found}, nil
		},
	}
}

// stateTool builds a state-mutation tool that copies a single string
// argument into the shared state under the given key.
func stateTool(name, key, description string) tool.Tool {
	return &hostTool{
		spec: tool.Spec{
			Name:        name,
			Description: description,
			Params: []tool.Param{
				{Name: key, Type: "string", Description: "The text to store.", Required: true},
			},
		},
		class: tool.ClassStateMutation,
		fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			value, err := stringArg(args, key)
			if err != nil {
				return nil, err
			}

			state := tool.StateFor(ctx)
			if state == nil {
				return nil, &tool.Error{Kind: tool.KindExternalFailure, Tool: name, Message: "no shared state in context"}
			}
			state.Set(key, value)
			return map[string]any{"status": "stored", "key": key}, nil
		},
	}
}

func postReviewTool(host Host, policy flow.RetryPolicy) tool.Tool {
	const name = ToolPostReview
	return &hostTool{
		spec: tool.Spec{
			Name:        name,
			Description: "Post the finalized PR review comment by creating a review on the specified pull request. This is the irrevocable final action of the workflow.",
			Params: []tool.Param{
				{Name: "pr_number", Type: "integer", Description: "The pull request number.", Required: true},
				{Name: "final_review_comment", Type: "string", Description: "The final review comment to post.", Required: true},
			},
		},
		class: tool.ClassTerminalWrite,
		fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			number, err := intArg(args, "pr_number")
			if err != nil {
				return nil, err
			}
			body, err := stringArg(args, "final_review_comment")
			if err != nil {
				return nil, err
			}

			// At most one posting per run, even if the agent asks again.
			state := tool.StateFor(ctx)
			if state != nil {
				if posted, _ := state.Get(KeyReviewPosted); posted == true {
					return map[string]any{"status": "already_posted"}, nil
				}
			}

			_, err = flow.Retry(ctx, policy, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, host.PostReview(ctx, number, body)
			})
			if err != nil {
				return nil, &tool.Error{
					Kind:    tool.KindExternalFailure,
					Tool:    name,
					Message: fmt.Sprintf("posting review failed after %d attempts", policy.MaxAttempts),
					Cause:   err,
				}
			}

			if state != nil {
				state.Set(KeyReviewPosted, true)
			}
			return map[string]any{"status": "posted", "pr_number": number}, nil
		},
	}
}

// intArg extracts an integer argument, tolerating the numeric types
// JSON decoders produce.
func intArg(args map[string]any, name string) (int, error) {
	v, ok := args[name]
	if !ok {
		return 0, &tool.Error{Kind: tool.KindInvalidArgs, Message: fmt.Sprintf("missing argument %q", name)}
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, &tool.Error{Kind: tool.KindInvalidArgs, Message: fmt.Sprintf("argument %q is not an integer: %v", name, err)}
		}
		return int(i), nil
	default:
		return 0, &tool.Error{Kind: tool.KindInvalidArgs, Message: fmt.Sprintf("argument %q must be an integer, got %T", name, v)}
	}
}

// stringArg extracts a non-empty string argument.
func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", &tool.Error{Kind: tool.KindInvalidArgs, Message: fmt.Sprintf("missing argument %q", name)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &tool.Error{Kind: tool.KindInvalidArgs, Message: fmt.Sprintf("argument %q must be a string, got %T", name, v)}
	}
	if s == "" {
		return "", &tool.Error{Kind: tool.KindInvalidArgs, Message: fmt.Sprintf("argument %q must not be empty", name)}
	}
	return s, nil
}
