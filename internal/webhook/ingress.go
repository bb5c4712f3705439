package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.replybot/internal/metrics"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/internal/reply"
	"uk.co.dudmesh.replybot/internal/rules"
)

type RuleStore interface {
	ListRules(ctx context.Context, workspaceID model.WorkspaceID) ([]model.Rule, error)
}

// CommentLog records processed comment ids. MarkCommentProcessed returns
// false when the comment was already recorded. ForgetComment removes the
// record so a redelivery is handled again.
type CommentLog interface {
	MarkCommentProcessed(ctx context.Context, workspaceID model.WorkspaceID, commentID string) (bool, error)
	ForgetComment(ctx context.Context, workspaceID model.WorkspaceID, commentID string) error
}

// Reply is handed to the Dispatcher, which owns delivery and any delay.
type Reply struct {
	WorkspaceID model.WorkspaceID
	Comment     model.CommentEvent
	RuleID      *model.RuleID
	Text        string
	Delay       time.Duration
}

type Dispatcher interface {
	Dispatch(ctx context.Context, reply Reply) error
}

type Outcome string

const (
	OutcomeReplied   Outcome = "replied"
	OutcomeGenerated Outcome = "generated"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

type Result struct {
	CommentID string        `json:"commentId"`
	Outcome   Outcome       `json:"outcome"`
	RuleID    *model.RuleID `json:"ruleId,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type Ingress struct {
	rules      RuleStore
	comments   CommentLog
	resolver   *reply.Resolver
	dispatcher Dispatcher
	fallback   *reply.AIRequest
}

func NewIngress(rules RuleStore, comments CommentLog, resolver *reply.Resolver, dispatcher Dispatcher, fallback *reply.AIRequest) *Ingress {
	return &Ingress{rules, comments, resolver, dispatcher, fallback}
}

// Handle processes each event independently; one failing event never stops
// the rest of the batch.
func (i *Ingress) Handle(ctx context.Context, workspaceID model.WorkspaceID, events []model.CommentEvent) ([]Result, error) {
	results := make([]Result, 0, len(events))
	if len(events) == 0 {
		return results, nil
	}

	ordered, err := i.rules.ListRules(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	ordered = rules.Order(ordered)

	for _, event := range events {
		result := i.handleEvent(ctx, workspaceID, ordered, event)
		if result.Outcome == OutcomeFailed && i.comments != nil {
			if err := i.comments.ForgetComment(ctx, workspaceID, event.ID); err != nil {
				log.Errorf("webhook: releasing comment %s in workspace %s: %v", event.ID, workspaceID, err)
			}
		}
		if result.Error != "" {
			log.Errorf("webhook: comment %s in workspace %s: %s", event.ID, workspaceID, result.Error)
		}
		metrics.CommentOutcomes.WithLabelValues(string(result.Outcome)).Inc()
		results = append(results, result)
	}
	return results, nil
}

func (i *Ingress) handleEvent(ctx context.Context, workspaceID model.WorkspaceID, ordered []model.Rule, event model.CommentEvent) Result {
	result := Result{CommentID: event.ID}

	if i.comments != nil {
		fresh, err := i.comments.MarkCommentProcessed(ctx, workspaceID, event.ID)
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Error = fmt.Sprintf("recording comment: %v", err)
			return result
		}
		if !fresh {
			result.Outcome = OutcomeDuplicate
			return result
		}
	}

	matched, ok := rules.Match(event.Text, ordered)
	if !ok && i.fallback == nil {
		result.Outcome = OutcomeNoMatch
		return result
	}

	req := reply.Request{Comment: event, AI: i.fallback}
	out := Reply{WorkspaceID: workspaceID, Comment: event}
	result.Outcome = OutcomeGenerated
	if ok {
		req.Rule = matched
		out.RuleID = &matched.ID
		out.Delay = time.Duration(matched.ReplyDelay) * time.Second
		result.RuleID = &matched.ID
		result.Outcome = OutcomeReplied
	}

	text, err := i.resolver.Resolve(ctx, req)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("resolving reply: %v", err)
		return result
	}
	out.Text = text

	if err := i.dispatcher.Dispatch(ctx, out); err != nil {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("dispatching reply: %v", err)
	}
	return result
}
