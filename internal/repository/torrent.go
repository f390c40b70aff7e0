package repository

import (
	"context"
	"errors"

	"fetcharr/internal/domain"
)

// ErrNotFound is returned when no torrent record matches a lookup.
var ErrNotFound = errors.New("torrent record not found")

// TorrentRepository persists torrent lifecycle records keyed by name. The
// record store is the source of truth for status; the transient queue state
// can always be rebuilt from it.
type TorrentRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, t *domain.Torrent) error
	GetByName(ctx context.Context, name string) (*domain.Torrent, error)
	GetByTorrentID(ctx context.Context, torrentID string) (*domain.Torrent, error)
	List(ctx context.Context) ([]domain.Torrent, error)
	ListByStatuses(ctx context.Context, statuses ...domain.Status) ([]domain.Torrent, error)
	UpdateStatus(ctx context.Context, name string, status domain.Status) error
	// SetTorrentID attaches the client-assigned id and advances the status
	// in one step. Fails if the id is already attached to another record.
	SetTorrentID(ctx context.Context, name, torrentID string, status domain.Status) error
	UpdateAttributes(ctx context.Context, name string, attrs domain.TorrentAttributes) error
}
