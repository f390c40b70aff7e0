package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fetcharr/internal/domain"
	"fetcharr/internal/repository"
)

const createTorrentsTable = `
CREATE TABLE IF NOT EXISTS torrents (
	name TEXT PRIMARY KEY,
	attributes TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL,
	torrent_id TEXT NULL UNIQUE,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type TorrentRepository struct {
	db *sql.DB
}

func NewTorrentRepository(db *sql.DB) repository.TorrentRepository {
	return &TorrentRepository{db: db}
}

func (r *TorrentRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTorrentsTable); err != nil {
		return fmt.Errorf("create torrents table: %w", err)
	}
	return nil
}

func (r *TorrentRepository) Create(ctx context.Context, t *domain.Torrent) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	attrs, err := domain.EncodeAttributes(t.Attributes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO torrents (name, attributes, status, torrent_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name,
		attrs,
		int(t.Status),
		nullString(t.TorrentID),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert torrent %s: %w", t.Name, err)
	}
	return nil
}

func (r *TorrentRepository) GetByName(ctx context.Context, name string) (*domain.Torrent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT name, attributes, status, torrent_id, created_at, updated_at
FROM torrents
WHERE name=?`, name)
	return scanTorrent(row)
}

func (r *TorrentRepository) GetByTorrentID(ctx context.Context, torrentID string) (*domain.Torrent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT name, attributes, status, torrent_id, created_at, updated_at
FROM torrents
WHERE torrent_id=?`, torrentID)
	return scanTorrent(row)
}

func (r *TorrentRepository) List(ctx context.Context) ([]domain.Torrent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT name, attributes, status, torrent_id, created_at, updated_at
FROM torrents
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query torrents: %w", err)
	}
	defer rows.Close()
	return collectTorrents(rows)
}

func (r *TorrentRepository) ListByStatuses(ctx context.Context, statuses ...domain.Status) ([]domain.Torrent, error) {
	if len(statuses) == 0 {
		return []domain.Torrent{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = int(status)
	}

	query := fmt.Sprintf(`
SELECT name, attributes, status, torrent_id, created_at, updated_at
FROM torrents
WHERE status IN (%s)
ORDER BY created_at ASC`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query torrents by status: %w", err)
	}
	defer rows.Close()
	return collectTorrents(rows)
}

func (r *TorrentRepository) UpdateStatus(ctx context.Context, name string, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET status=?, updated_at=?
WHERE name=?`,
		int(status),
		time.Now().UTC(),
		name,
	)
	if err != nil {
		return fmt.Errorf("update torrent status: %w", err)
	}
	return requireAffected(res, name)
}

func (r *TorrentRepository) SetTorrentID(ctx context.Context, name, torrentID string, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET torrent_id=?, status=?, updated_at=?
WHERE name=?`,
		torrentID,
		int(status),
		time.Now().UTC(),
		name,
	)
	if err != nil {
		return fmt.Errorf("set torrent id for %s: %w", name, err)
	}
	return requireAffected(res, name)
}

func (r *TorrentRepository) UpdateAttributes(ctx context.Context, name string, attrs domain.TorrentAttributes) error {
	encoded, err := domain.EncodeAttributes(attrs)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET attributes=?, updated_at=?
WHERE name=?`,
		encoded,
		time.Now().UTC(),
		name,
	)
	if err != nil {
		return fmt.Errorf("update torrent attributes: %w", err)
	}
	return requireAffected(res, name)
}

func requireAffected(res sql.Result, name string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("torrent %s: %w", name, repository.ErrNotFound)
	}
	return nil
}

func collectTorrents(rows *sql.Rows) ([]domain.Torrent, error) {
	var torrents []domain.Torrent
	for rows.Next() {
		t, err := scanTorrent(rows)
		if err != nil {
			return nil, err
		}
		torrents = append(torrents, *t)
	}
	return torrents, rows.Err()
}

func scanTorrent(scanner interface {
	Scan(dest ...any) error
}) (*domain.Torrent, error) {
	var (
		t         domain.Torrent
		attrs     string
		status    int
		torrentID sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	if err := scanner.Scan(
		&t.Name,
		&attrs,
		&status,
		&torrentID,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan torrent: %w", err)
	}

	decoded, err := domain.DecodeAttributes(attrs)
	if err != nil {
		return nil, err
	}
	t.Attributes = decoded
	t.Status = domain.Status(status)
	if torrentID.Valid {
		t.TorrentID = torrentID.String
	}
	t.CreatedAt = createdAt.Local()
	t.UpdatedAt = updatedAt.Local()

	return &t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
