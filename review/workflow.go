package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/agentflow-go/flow"
	"github.com/dshills/agentflow-go/flow/decide"
	"github.com/dshills/agentflow-go/flow/model"
	"github.com/google/uuid"
)

// Agent names in the review workflow.
const (
	AgentContext          = "ContextAgent"
	AgentCommentor        = "CommentorAgent"
	AgentReviewAndPosting = "ReviewAndPostingAgent"
)

// Config configures a review workflow.
type Config struct {
	// Host is the source-control surface. Required.
	Host Host

	// Model drives agent decisions. Required unless Decider is set.
	Model model.ChatModel

	// Decider overrides the model-backed decision function per agent,
	// keyed by agent name. Used by tests to script runs.
	Decider func(agentName string) flow.Decider

	// PostRetry bounds retries of the terminal posting call. Zero
	// value means DefaultPostRetry.
	PostRetry flow.RetryPolicy

	// Options are passed through to the engine (turn budget, emitter,
	// store, metrics).
	Options []flow.Option
}

// Workflow wires the three review agents to a host and runs reviews.
//
// Example usage:
//
//	host, err := review.NewGitHubHost("octocat/hello-world", token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer host.Close()
//
//	wf, err := review.NewWorkflow(review.Config{
//	    Host:  host,
//	    Model: openai.NewChatModel(apiKey, "gpt-4o"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := wf.Review(ctx, 42)
//	fmt.Println(result.Status, result.Output)
type Workflow struct {
	engine *flow.Engine
}

// NewWorkflow builds the review workflow: registers the seven review
// tools and the three agents, with the posting agent as root.
func NewWorkflow(cfg Config) (*Workflow, error) {
	if cfg.Host == nil {
		return nil, errors.New("review: Host is required")
	}
	if cfg.Model == nil && cfg.Decider == nil {
		return nil, errors.New("review: either Model or Decider is required")
	}

	deciderFor := cfg.Decider
	if deciderFor == nil {
		shared := decide.FromChatModel(cfg.Model)
		deciderFor = func(string) flow.Decider { return shared }
	}

	retry := cfg.PostRetry
	if retry.MaxAttempts == 0 {
		retry = DefaultPostRetry
	}

	registry, err := newRegistry(cfg.Host, retry)
	if err != nil {
		return nil, fmt.Errorf("review: registering tools: %w", err)
	}

	agents := []*flow.Agent{
		{
			Name:        AgentContext,
			Description: "Gathers PR details, commit info, and file contents.",
			Prompt:      contextPrompt,
			Tools:       []string{ToolGetPRDetails, ToolGetCommitDetails, ToolGetFileContent, ToolAddContext},
			Handoffs:    []string{AgentCommentor},
			Decider:     deciderFor(AgentContext),
		},
		{
			Name:        AgentCommentor,
			Description: "Drafts a detailed pull request review using context from the ContextAgent, requesting additional information when needed.",
			Prompt:      commentorPrompt,
			Tools:       []string{ToolAddDraft},
			Handoffs:    []string{AgentContext, AgentReviewAndPosting},
			Decider:     deciderFor(AgentCommentor),
		},
		{
			Name:        AgentReviewAndPosting,
			Description: "Oversees the quality of the draft review, coordinates rewrites, finalizes the review, and publishes the approved comment.",
			Prompt:      reviewAndPostingPrompt,
			Tools:       []string{ToolAddFinalReview, ToolPostReview},
			Handoffs:    []string{AgentCommentor},
			Decider:     deciderFor(AgentReviewAndPosting),
		},
	}

	opts := append([]flow.Option{flow.WithRoot(AgentReviewAndPosting)}, cfg.Options...)
	engine, err := flow.New(registry, agents, opts...)
	if err != nil {
		return nil, fmt.Errorf("review: building engine: %w", err)
	}
	return &Workflow{engine: engine}, nil
}

// Review runs one end-to-end review of the given pull request and
// returns the run outcome. Each call is an independent run with a
// fresh state and a unique run ID.
func (w *Workflow) Review(ctx context.Context, prNumber int) flow.RunResult {
	task := fmt.Sprintf("Write a review for PR: %d", prNumber)
	initial := map[string]any{
		"pr_number":        prNumber,
		KeyGatheredContext: "",
		KeyDraftComment:    "",
		KeyFinalReview:     "",
	}
	return w.engine.Run(ctx, uuid.NewString(), task, initial)
}
