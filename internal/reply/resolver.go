package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/pkg/platform"
)

var ErrorNothingToResolve = fmt.Errorf("%w: no rule matched and no AI fallback configured", model.ErrorInvalidInput)

type TemplateStore interface {
	FetchTemplate(ctx context.Context, workspaceID model.WorkspaceID, id model.TemplateID) (*model.Template, error)
}

// Generator produces reply text from a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, systemInstruction string, prompt string) (string, error)
}

type Request struct {
	Rule      *model.Rule
	AI        *AIRequest
	Comment   model.CommentEvent
	Variables map[string]string
}

type Resolver struct {
	templates TemplateStore
	generator Generator
	maxLength int
}

func NewResolver(templates TemplateStore, generator Generator, maxLength int) *Resolver {
	if maxLength <= 0 {
		maxLength = platform.MaxTextLength
	}
	return &Resolver{templates, generator, maxLength}
}

// Resolve builds the final reply text. A matched rule takes precedence over
// the AI fallback.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, error) {
	if req.Rule != nil {
		return r.fromRule(ctx, req)
	}
	if req.AI != nil && r.generator != nil {
		return r.fromGenerator(ctx, req)
	}
	return "", ErrorNothingToResolve
}

func (r *Resolver) fromRule(ctx context.Context, req Request) (string, error) {
	body := req.Rule.ReplyText
	if req.Rule.TemplateID != nil && r.templates != nil {
		template, err := r.templates.FetchTemplate(ctx, req.Rule.WorkspaceID, *req.Rule.TemplateID)
		switch {
		case err == nil:
			body = template.Body
		case errors.Is(err, model.ErrorNotFound) && body != "":
		default:
			return "", fmt.Errorf("loading template: %w", err)
		}
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: rule %s has no reply", model.ErrorInvalidInput, req.Rule.ID)
	}

	vars := make(map[string]string, len(req.Variables)+2)
	for name, value := range req.Variables {
		vars[name] = value
	}
	vars["username"] = req.Comment.AuthorUsername
	vars["comment"] = req.Comment.Text

	return Truncate(Substitute(body, vars), r.maxLength), nil
}

func (r *Resolver) fromGenerator(ctx context.Context, req Request) (string, error) {
	maxLength := req.AI.MaxLength
	if maxLength <= 0 || maxLength > r.maxLength {
		maxLength = r.maxLength
	}

	vars := req.AI.Variables
	if len(req.Variables) > 0 {
		vars = make(map[string]string, len(req.AI.Variables)+len(req.Variables))
		for name, value := range req.AI.Variables {
			vars[name] = value
		}
		for name, value := range req.Variables {
			vars[name] = value
		}
	}

	system := SystemInstruction(req.AI.Tone, maxLength)
	prompt := UserPrompt(req.AI.Prompt, req.Comment.Text, req.Comment.AuthorUsername, vars)

	text, err := r.generator.Generate(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("generating reply: %w: empty response", model.ErrorUpstream)
	}
	return Truncate(text, maxLength), nil
}
