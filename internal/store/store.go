package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"uk.co.dudmesh.replybot/internal/model"
)

// Store persists workspaces' rules, templates, accounts and posts. It runs on
// sqlite for local use and on Postgres when given a postgres:// URL.
type Store struct {
	db *sqlx.DB
}

var schema = []string{
	`create table if not exists rules (
		id               text not null primary key,
		workspace_id     text not null,
		name             text not null,
		priority         integer not null default 0,
		active           boolean not null default true,
		match_mode       text not null,
		keywords         text not null,
		exclude_keywords text not null,
		reply_text       text not null,
		template_id      text null,
		reply_delay      integer not null default 0,
		created_at       timestamp not null,
		updated_at       timestamp null
	)`,
	`create index if not exists rules_workspace on rules (workspace_id, created_at)`,
	`create table if not exists templates (
		id           text not null primary key,
		workspace_id text not null,
		name         text not null,
		body         text not null,
		created_at   timestamp not null
	)`,
	`create table if not exists accounts (
		id               text not null primary key,
		workspace_id     text not null,
		external_user_id text not null unique,
		username         text not null,
		token            text not null,
		token_expires_at timestamp null,
		created_at       timestamp not null,
		updated_at       timestamp null
	)`,
	`create table if not exists posts (
		id            text not null primary key,
		workspace_id  text not null,
		account_id    text not null,
		content       text not null,
		status        text not null,
		external_id   text null,
		error_message text null,
		scheduled_for timestamp null,
		attempt_id    text null,
		attempt_at    timestamp null,
		published_at  timestamp null,
		created_at    timestamp not null,
		updated_at    timestamp null
	)`,
	`create table if not exists processed_comments (
		workspace_id text not null,
		comment_id   text not null,
		processed_at timestamp not null,
		primary key (workspace_id, comment_id)
	)`,
	`create table if not exists reply_jobs (
		id           text not null primary key,
		workspace_id text not null,
		recipient_id text not null,
		comment_id   text not null,
		rule_id      text null,
		text         text not null,
		due_at       timestamp not null,
		created_at   timestamp not null
	)`,
}

// Open connects to dsn. A postgres:// or postgresql:// URL selects Postgres,
// anything else is treated as a sqlite file name or URI.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver := "sqlite3"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	} else if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, statement := range schema {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrorNotFound
	}
	return err
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return rows, nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...interface{}) error {
	rows, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if rows != 1 {
		return model.ErrorNotFound
	}
	return nil
}
