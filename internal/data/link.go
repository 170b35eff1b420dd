package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
)

// Dialect selects placeholder style and driver name
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const linkSchema = `
	CREATE TABLE IF NOT EXISTS links (
		forward_chat_id TEXT NOT NULL,
		forward_msg_id TEXT NOT NULL,
		origin_chat_id TEXT NOT NULL,
		origin_msg_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		request_id TEXT NOT NULL UNIQUE,
		tags TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at BIGINT NOT NULL,
		resolved_at BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (forward_chat_id, forward_msg_id)
	)
`

var linkIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_links_sender ON links(sender_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_links_status ON links(status, created_at)`,
}

const linkColumns = `forward_chat_id, forward_msg_id, origin_chat_id, origin_msg_id,
	sender_id, request_id, tags, status, created_at, resolved_at`

// linkRepo implements the Link Store on database/sql
type linkRepo struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewLinkRepo opens the Link Store. For sqlite, target is a file path;
// for postgres it is a connection string.
func NewLinkRepo(dialect Dialect, target string) (repo.LinkRepo, error) {
	switch dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	case DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(string(dialect), target)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// Serialize writers so conditional updates stay atomic
		db.SetMaxOpenConns(1)
	}

	r, err := NewLinkRepoWithDB(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// NewLinkRepoWithDB wraps an open database and ensures the schema exists
func NewLinkRepoWithDB(db *sql.DB, dialect Dialect) (repo.LinkRepo, error) {
	if _, err := db.Exec(linkSchema); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	for _, stmt := range linkIndexes {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}
	return &linkRepo{db: db, dialect: dialect, now: time.Now}, nil
}

// Put creates a pending link
func (r *linkRepo) Put(ctx context.Context, nl *repo.NewLink) (*domain.Link, error) {
	tags := nl.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	now := r.now()
	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT DO NOTHING
	`),
		nl.Forward.ChatID,
		nl.Forward.MessageID,
		nl.Origin.ChatID,
		nl.Origin.MessageID,
		nl.SenderID,
		nl.RequestID,
		string(tagsJSON),
		string(domain.LinkPending),
		now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrConflict
	}

	return &domain.Link{
		Forward:   nl.Forward,
		Origin:    nl.Origin,
		SenderID:  nl.SenderID,
		RequestID: nl.RequestID,
		Tags:      tags,
		Status:    domain.LinkPending,
		CreatedAt: time.UnixMilli(now.UnixMilli()),
	}, nil
}

// GetByForward gets a link by the location of its forwarded copy
func (r *linkRepo) GetByForward(ctx context.Context, forward domain.Location) (*domain.Link, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+linkColumns+`
		FROM links
		WHERE forward_chat_id = ? AND forward_msg_id = ?
	`), forward.ChatID, forward.MessageID)
	return scanLink(row)
}

// GetByRequestID gets a link by its request ID
func (r *linkRepo) GetByRequestID(ctx context.Context, requestID string) (*domain.Link, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+linkColumns+`
		FROM links
		WHERE request_id = ?
	`), requestID)
	return scanLink(row)
}

// Resolve moves a pending link to the outcome's status.
// The update only matches pending rows, so two racing resolutions
// cannot both succeed.
func (r *linkRepo) Resolve(ctx context.Context, forward domain.Location, outcome domain.Outcome) (*domain.Link, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("invalid outcome %q", outcome)
	}

	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE links
		SET status = ?, resolved_at = ?
		WHERE forward_chat_id = ? AND forward_msg_id = ? AND status = ?
	`),
		string(outcome.Status()),
		r.now().UnixMilli(),
		forward.ChatID,
		forward.MessageID,
		string(domain.LinkPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve link: %w", err)
	}

	link, err := r.GetByForward(ctx, forward)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return link, domain.ErrAlreadyResolved
	}
	return link, nil
}

// ListBySender returns a requester's links, newest first
func (r *linkRepo) ListBySender(ctx context.Context, senderID string, limit int) ([]*domain.Link, error) {
	return r.list(ctx, `sender_id = ?`, senderID, limit)
}

// ListByStatus returns links in a status, newest first
func (r *linkRepo) ListByStatus(ctx context.Context, status domain.LinkStatus, limit int) ([]*domain.Link, error) {
	return r.list(ctx, `status = ?`, string(status), limit)
}

func (r *linkRepo) list(ctx context.Context, where string, arg interface{}, limit int) ([]*domain.Link, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT `+linkColumns+`
		FROM links
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT ?
	`), arg, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []*domain.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}
	return links, nil
}

// Close closes the database
func (r *linkRepo) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres
func (r *linkRepo) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var link domain.Link
	var tagsJSON, status string
	var createdAt, resolvedAt int64

	err := row.Scan(
		&link.Forward.ChatID,
		&link.Forward.MessageID,
		&link.Origin.ChatID,
		&link.Origin.MessageID,
		&link.SenderID,
		&link.RequestID,
		&tagsJSON,
		&status,
		&createdAt,
		&resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan link: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &link.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	link.Status = domain.LinkStatus(status)
	link.CreatedAt = time.UnixMilli(createdAt)
	if resolvedAt > 0 {
		t := time.UnixMilli(resolvedAt)
		link.ResolvedAt = &t
	}
	return &link, nil
}
