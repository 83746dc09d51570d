package review

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/agentflow-go/flow"
	"github.com/dshills/agentflow-go/flow/tool"
)

// fakeHost is an in-memory Host for testing the review tools.
type fakeHost struct {
	pr        PRDetails
	prErr     error
	changes   []CommitChange
	changeErr error
	content   string
	found     bool
	fileErr   error

	postErr   error
	postFails int // fail this many posts before succeeding
	posted    []string
	closed    bool
}

func (f *fakeHost) PullRequest(ctx context.Context, number int) (PRDetails, error) {
	return f.pr, f.prErr
}

func (f *fakeHost) CommitChanges(ctx context.Context, sha string) ([]CommitChange, error) {
	return f.changes, f.changeErr
}

func (f *fakeHost) FileAtRevision(ctx context.Context, path, ref string) (string, bool, error) {
	return f.content, f.found, f.fileErr
}

func (f *fakeHost) PostReview(ctx context.Context, number int, body string) error {
	if f.postFails > 0 {
		f.postFails--
		return errors.New("host unavailable")
	}
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, body)
	return nil
}

func (f *fakeHost) Close() error {
	f.closed = true
	return nil
}

// fastRetry keeps retry tests quick.
var fastRetry = flow.RetryPolicy{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0}

func findTool(t *testing.T, host Host, name string) tool.Tool {
	t.Helper()
	for _, tl := range Tools(host, fastRetry) {
		if tl.Spec().Name == name {
			return tl
		}
	}
	t.Fatalf("tool %q not built", name)
	return nil
}

func stateCtx(state *flow.State) context.Context {
	return tool.WithState(context.Background(), state)
}

func TestGetPRDetailsTool(t *testing.T) {
	t.Run("returns details", func(t *testing.T) {
		host := &fakeHost{pr: PRDetails{
			Author:     "octocat",
			Title:      "Add parser",
			Body:       "Adds the parser.",
			DiffURL:    "https://example.com/diff",
			State:      "open",
			CommitSHAs: []string{"abc123"},
		}}
		tl := findTool(t, host, ToolGetPRDetails)

		out, err := tl.Call(context.Background(), map[string]any{"pr_number": 42})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if out["author"] != "octocat" || out["state"] != "open" {
			t.Errorf("unexpected details: %+v", out)
		}
		shas := out["commit_shas"].([]string)
		if len(shas) != 1 || shas[0] != "abc123" {
			t.Errorf("unexpected commit SHAs %v", shas)
		}
	})

	t.Run("degrades on host failure", func(t *testing.T) {
		host := &fakeHost{prErr: errors.New("boom")}
		tl := findTool(t, host, ToolGetPRDetails)

		out, err := tl.Call(context.Background(), map[string]any{"pr_number": 42})
		if err != nil {
			t.Fatalf("read failure must not abort: %v", err)
		}
		if out["author"] != "unknown" || out["state"] != "unknown" {
			t.Errorf("expected degraded record, got %+v", out)
		}
		if shas := out["commit_shas"].([]string); len(shas) != 0 {
			t.Errorf("expected empty SHAs, got %v", shas)
		}
	})

	t.Run("accepts float arguments", func(t *testing.T) {
		host := &fakeHost{}
		tl := findTool(t, host, ToolGetPRDetails)

		// JSON decoders produce float64 for numbers.
		if _, err := tl.Call(context.Background(), map[string]any{"pr_number": float64(42)}); err != nil {
			t.Errorf("Call failed: %v", err)
		}
	})

	t.Run("rejects non-numeric pr_number", func(t *testing.T) {
		host := &fakeHost{}
		tl := findTool(t, host, ToolGetPRDetails)

		_, err := tl.Call(context.Background(), map[string]any{"pr_number": "forty-two"})
		var toolErr *tool.Error
		if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindInvalidArgs {
			t.Errorf("expected InvalidArgs, got %v", err)
		}
	})
}

func TestGetCommitDetailsTool(t *testing.T) {
	t.Run("returns changed files", func(t *testing.T) {
		host := &fakeHost{changes: []CommitChange{
			{Path: "main.go", Status: "modified", Additions: 3, Deletions: 1, Changes: 4, Patch: "@@", Ref: "abc123"},
		}}
		tl := findTool(t, host, ToolGetCommitDetails)

		out, err := tl.Call(context.Background(), map[string]any{"sha": "abc123"})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		files := out["files"].([]any)
		if len(files) != 1 {
			t.Fatalf("expected 1 file, got %d", len(files))
		}
		file := files[0].(map[string]any)
		if file["filename"] != "main.go" || file["ref"] != "abc123" {
			t.Errorf("unexpected file entry: %+v", file)
		}
	})

	t.Run("degrades to empty list on host failure", func(t *testing.T) {
		host := &fakeHost{changeErr: errors.New("boom")}
		tl := findTool(t, host, ToolGetCommitDetails)

		out, err := tl.Call(context.Background(), map[string]any{"sha": "abc123"})
		if err != nil {
			t.Fatalf("read failure must not abort: %v", err)
		}
		if files := out["files"].([]any); len(files) != 0 {
			t.Errorf("expected empty file list, got %v", files)
		}
	})

	t.Run("requires sha", func(t *testing.T) {
		tl := findTool(t, &fakeHost{}, ToolGetCommitDetails)
		_, err := tl.Call(context.Background(), map[string]any{"sha": ""})
		var toolErr *tool.Error
		if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindInvalidArgs {
			t.Errorf("expected InvalidArgs, got %v", err)
		}
	})
}

func TestGetFileContentTool(t *testing.T) {
	args := map[string]any{"path": "main.go", "ref": "abc123"}

	t.Run("returns content", func(t *testing.T) {
		host := &fakeHost{content: "package main", found: true}
		tl := findTool(t, host, ToolGetFileContent)

		out, err := tl.Call(context.Background(), args)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if out["content"] != "package main" || out["found"] != true {
			t.Errorf("unexpected output: %+v", out)
		}
	})

	t.Run("reports absent paths", func(t *testing.T) {
		host := &fakeHost{found: false}
		tl := findTool(t, host, ToolGetFileContent)

		out, err := tl.Call(context.Background(), args)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if out["found"] != false {
			t.Errorf("expected found=false, got %+v", out)
		}
	})

	t.Run("degrades to absent on host failure", func(t *testing.T) {
		host := &fakeHost{fileErr: errors.New("boom")}
		tl := findTool(t, host, ToolGetFileContent)

		out, err := tl.Call(context.Background(), args)
		if err != nil {
			t.Fatalf("read failure must not abort: %v", err)
		}
		if out["found"] != false || out["content"] != "" {
			t.Errorf("expected absent result, got %+v", out)
		}
	})
}

func TestStateTools(t *testing.T) {
	cases := []struct {
		toolName string
		key      string
	}{
		{ToolAddContext, KeyGatheredContext},
		{ToolAddDraft, KeyDraftComment},
		{ToolAddFinalReview, KeyFinalReview},
	}

	for _, tc := range cases {
		t.Run(tc.toolName, func(t *testing.T) {
			tl := findTool(t, &fakeHost{}, tc.toolName)
			state := flow.NewState(nil)

			out, err := tl.Call(stateCtx(state), map[string]any{tc.key: "some text"})
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			if out["status"] != "stored" {
				t.Errorf("unexpected output: %+v", out)
			}
			if got := state.GetString(tc.key); got != "some text" {
				t.Errorf("state[%s] = %q, want 'some text'", tc.key, got)
			}
			if tl.Class() != tool.ClassStateMutation {
				t.Errorf("unexpected class %q", tl.Class())
			}
		})
	}

	t.Run("fails without bound state", func(t *testing.T) {
		tl := findTool(t, &fakeHost{}, ToolAddDraft)
		_, err := tl.Call(context.Background(), map[string]any{KeyDraftComment: "text"})
		if err == nil {
			t.Error("expected error when no state is bound")
		}
	})
}

func TestPostReviewTool(t *testing.T) {
	args := map[string]any{"pr_number": 42, "final_review_comment": "Looks good."}

	t.Run("posts and records guard", func(t *testing.T) {
		host := &fakeHost{}
		tl := findTool(t, host, ToolPostReview)
		state := flow.NewState(nil)

		out, err := tl.Call(stateCtx(state), args)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if out["status"] != "posted" {
			t.Errorf("unexpected output: %+v", out)
		}
		if len(host.posted) != 1 || host.posted[0] != "Looks good." {
			t.Errorf("unexpected postings %v", host.posted)
		}
		if posted, _ := state.Get(KeyReviewPosted); posted != true {
			t.Error("expected review_posted guard to be set")
		}
		if tl.Class() != tool.ClassTerminalWrite {
			t.Errorf("unexpected class %q", tl.Class())
		}
	})

	t.Run("posts at most once per run", func(t *testing.T) {
		host := &fakeHost{}
		tl := findTool(t, host, ToolPostReview)
		state := flow.NewState(nil)
		ctx := stateCtx(state)

		if _, err := tl.Call(ctx, args); err != nil {
			t.Fatalf("first Call failed: %v", err)
		}
		out, err := tl.Call(ctx, args)
		if err != nil {
			t.Fatalf("second Call failed: %v", err)
		}
		if out["status"] != "already_posted" {
			t.Errorf("unexpected output: %+v", out)
		}
		if len(host.posted) != 1 {
			t.Errorf("expected exactly one posting, got %d", len(host.posted))
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		host := &fakeHost{postFails: 2}
		tl := findTool(t, host, ToolPostReview)

		out, err := tl.Call(stateCtx(flow.NewState(nil)), args)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if out["status"] != "posted" || len(host.posted) != 1 {
			t.Errorf("expected posting on third attempt, got %+v", out)
		}
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		host := &fakeHost{postFails: fastRetry.MaxAttempts + 1}
		tl := findTool(t, host, ToolPostReview)

		_, err := tl.Call(stateCtx(flow.NewState(nil)), args)
		var toolErr *tool.Error
		if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindExternalFailure {
			t.Fatalf("expected ExternalFailure, got %v", err)
		}
		// MaxAttempts posts were made, then the tool stopped.
		if host.postFails != 1 {
			t.Errorf("expected exactly %d attempts, %d failures left", fastRetry.MaxAttempts, host.postFails)
		}
		if len(host.posted) != 0 {
			t.Errorf("nothing should have been posted, got %v", host.posted)
		}
	})
}
