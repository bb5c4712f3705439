package store

import (
	"context"
	"fmt"

	"uk.co.dudmesh.replybot/internal/model"
)

// ListRules returns every rule in the workspace in creation order.
func (s *Store) ListRules(ctx context.Context, workspaceID model.WorkspaceID) ([]model.Rule, error) {
	rules := []model.Rule{}
	err := s.db.SelectContext(ctx, &rules, s.db.Rebind(`select * from rules where workspace_id = ? order by created_at, id`), workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return rules, nil
}

func (s *Store) FetchRule(ctx context.Context, workspaceID model.WorkspaceID, id model.RuleID) (*model.Rule, error) {
	rule := &model.Rule{}
	if err := s.get(ctx, rule, `select * from rules where workspace_id = ? and id = ?`, workspaceID, id); err != nil {
		return nil, fmt.Errorf("fetching rule: %w", err)
	}
	return rule, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *model.Rule) error {
	_, err := s.db.NamedExecContext(ctx, `insert into rules
		(id, workspace_id, name, priority, active, match_mode, keywords, exclude_keywords, reply_text, template_id, reply_delay, created_at)
		values(:id, :workspace_id, :name, :priority, :active, :match_mode, :keywords, :exclude_keywords, :reply_text, :template_id, :reply_delay, :created_at)`, rule)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *model.Rule) error {
	res, err := s.db.NamedExecContext(ctx, `update rules set
		name = :name, priority = :priority, active = :active, match_mode = :match_mode, keywords = :keywords,
		exclude_keywords = :exclude_keywords, reply_text = :reply_text, template_id = :template_id,
		reply_delay = :reply_delay, updated_at = :updated_at
		where id = :id and workspace_id = :workspace_id`, rule)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	if rows, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if rows != 1 {
		return fmt.Errorf("updating rule: %w", model.ErrorNotFound)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, workspaceID model.WorkspaceID, id model.RuleID) error {
	if err := s.execOne(ctx, `delete from rules where workspace_id = ? and id = ?`, workspaceID, id); err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return nil
}

func (s *Store) FetchTemplate(ctx context.Context, workspaceID model.WorkspaceID, id model.TemplateID) (*model.Template, error) {
	template := &model.Template{}
	if err := s.get(ctx, template, `select * from templates where workspace_id = ? and id = ?`, workspaceID, id); err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}
	return template, nil
}

func (s *Store) CreateTemplate(ctx context.Context, template *model.Template) error {
	_, err := s.db.NamedExecContext(ctx, `insert into templates (id, workspace_id, name, body, created_at)
		values(:id, :workspace_id, :name, :body, :created_at)`, template)
	if err != nil {
		return fmt.Errorf("inserting template: %w", err)
	}
	return nil
}
