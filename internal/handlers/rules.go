package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"uk.co.dudmesh.replybot/internal/auth"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/internal/reply"
	"uk.co.dudmesh.replybot/internal/rules"
)

const testUsername = "test_user"

type RuleStore interface {
	ListRules(ctx context.Context, workspaceID model.WorkspaceID) ([]model.Rule, error)
	FetchRule(ctx context.Context, workspaceID model.WorkspaceID, id model.RuleID) (*model.Rule, error)
	CreateRule(ctx context.Context, rule *model.Rule) error
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, workspaceID model.WorkspaceID, id model.RuleID) error
	FetchTemplate(ctx context.Context, workspaceID model.WorkspaceID, id model.TemplateID) (*model.Template, error)
}

type Resolver interface {
	Resolve(ctx context.Context, req reply.Request) (string, error)
}

func workspace(c echo.Context) (model.WorkspaceID, bool) {
	workspaceID := model.WorkspaceID(c.Param("id"))
	return workspaceID, auth.Authorized(c, workspaceID)
}

func ListRules(store RuleStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		list, err := store.ListRules(c.Request().Context(), workspaceID)
		if err != nil {
			return failWith(c, err)
		}
		return c.JSON(http.StatusOK, rules.Sort(list))
	}
}

func CreateRule(store RuleStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		params := &model.RuleParams{}
		if err := c.Bind(params); err != nil {
			return fail(c, http.StatusBadRequest, "invalid request body")
		}

		rule := &model.Rule{
			ID:          model.RuleID(model.CreateID()),
			WorkspaceID: workspaceID,
			CreatedAt:   time.Now().UTC(),
		}
		if err := applyParams(rule, params); err != nil {
			return failWith(c, err)
		}
		if err := checkTemplate(c.Request().Context(), store, rule); err != nil {
			return failWith(c, err)
		}
		if err := store.CreateRule(c.Request().Context(), rule); err != nil {
			return failWith(c, err)
		}
		return c.JSON(http.StatusCreated, rule)
	}
}

func UpdateRule(store RuleStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		ctx := c.Request().Context()

		rule, err := store.FetchRule(ctx, workspaceID, model.RuleID(c.Param("ruleID")))
		if err != nil {
			return failWith(c, err)
		}
		params := &model.RuleParams{}
		if err := c.Bind(params); err != nil {
			return fail(c, http.StatusBadRequest, "invalid request body")
		}
		if params.Active == nil {
			params.Active = &rule.Active
		}
		if err := applyParams(rule, params); err != nil {
			return failWith(c, err)
		}
		if err := checkTemplate(ctx, store, rule); err != nil {
			return failWith(c, err)
		}
		updatedAt := time.Now().UTC()
		rule.UpdatedAt = &updatedAt

		if err := store.UpdateRule(ctx, rule); err != nil {
			return failWith(c, err)
		}
		return c.JSON(http.StatusOK, rule)
	}
}

func DeleteRule(store RuleStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		if err := store.DeleteRule(c.Request().Context(), workspaceID, model.RuleID(c.Param("ruleID"))); err != nil {
			return failWith(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func applyParams(rule *model.Rule, params *model.RuleParams) error {
	keywords := cleanKeywords(params.Keywords)
	if len(keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", model.ErrorInvalidInput)
	}
	mode := params.MatchMode
	if mode == "" {
		mode = model.MatchModeAny
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown match mode %q", model.ErrorInvalidInput, mode)
	}
	if strings.TrimSpace(params.ReplyText) == "" && params.TemplateID == nil {
		return fmt.Errorf("%w: a reply text or template is required", model.ErrorInvalidInput)
	}
	if params.ReplyDelay < 0 {
		return fmt.Errorf("%w: reply delay cannot be negative", model.ErrorInvalidInput)
	}

	rule.Name = params.Name
	rule.Priority = params.Priority
	rule.Active = params.Active == nil || *params.Active
	rule.MatchMode = mode
	rule.Keywords = keywords
	rule.ExcludeKeywords = cleanKeywords(params.ExcludeKeywords)
	rule.ReplyText = params.ReplyText
	rule.TemplateID = params.TemplateID
	rule.ReplyDelay = params.ReplyDelay
	return nil
}

// checkTemplate rejects a template reference outside the rule's workspace.
func checkTemplate(ctx context.Context, store RuleStore, rule *model.Rule) error {
	if rule.TemplateID == nil {
		return nil
	}
	_, err := store.FetchTemplate(ctx, rule.WorkspaceID, *rule.TemplateID)
	if errors.Is(err, model.ErrorNotFound) {
		return fmt.Errorf("%w: unknown template %q", model.ErrorInvalidInput, *rule.TemplateID)
	}
	return err
}

func cleanKeywords(keywords []string) model.StringList {
	cleaned := model.StringList{}
	for _, keyword := range keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			cleaned = append(cleaned, keyword)
		}
	}
	return cleaned
}

type testRuleRequest struct {
	TestComment string        `json:"test_comment"`
	RuleID      *model.RuleID `json:"rule_id"`
}

type testRuleResponse struct {
	Matched      bool        `json:"matched"`
	MatchedRule  *model.Rule `json:"matched_rule,omitempty"`
	ReplyContent *string     `json:"reply_content,omitempty"`
}

// TestRule evaluates a sample comment against the stored rules without
// sending or recording anything.
func TestRule(store RuleStore, resolver Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		ctx := c.Request().Context()

		req := &testRuleRequest{}
		if err := c.Bind(req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid request body")
		}
		if strings.TrimSpace(req.TestComment) == "" {
			return fail(c, http.StatusBadRequest, "test_comment is required")
		}

		var candidates []model.Rule
		if req.RuleID != nil {
			rule, err := store.FetchRule(ctx, workspaceID, *req.RuleID)
			if err != nil {
				return failWith(c, err)
			}
			rule.Active = true
			candidates = []model.Rule{*rule}
		} else {
			list, err := store.ListRules(ctx, workspaceID)
			if err != nil {
				return failWith(c, err)
			}
			candidates = rules.Order(list)
		}

		matched, ok := rules.Match(req.TestComment, candidates)
		if !ok {
			return c.JSON(http.StatusOK, testRuleResponse{Matched: false})
		}

		text, err := resolver.Resolve(ctx, reply.Request{
			Rule:    matched,
			Comment: model.CommentEvent{Text: req.TestComment, AuthorUsername: testUsername},
		})
		if err != nil {
			return failWith(c, err)
		}
		return c.JSON(http.StatusOK, testRuleResponse{Matched: true, MatchedRule: matched, ReplyContent: &text})
	}
}
