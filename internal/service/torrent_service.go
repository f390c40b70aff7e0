package service

import (
	"context"
	"errors"
	"fmt"

	"fetcharr/internal/domain"
	"fetcharr/internal/repository"
)

// TorrentService coordinates torrent request operations backed by the record
// store. Submission to the transfer client happens asynchronously via the
// queue jobs; creating a request only persists it as pending.
type TorrentService interface {
	CreateTorrent(ctx context.Context, name string, attrs domain.TorrentAttributes) (*domain.Torrent, error)
	GetTorrent(ctx context.Context, name string) (*domain.Torrent, error)
	ListTorrents(ctx context.Context) ([]domain.Torrent, error)
	ListByStatuses(ctx context.Context, statuses ...domain.Status) ([]domain.Torrent, error)
	MarkProcessed(ctx context.Context, name string) error
}

type torrentService struct {
	torrents repository.TorrentRepository
}

func NewTorrentService(torrents repository.TorrentRepository) TorrentService {
	return &torrentService{torrents: torrents}
}

func (s *torrentService) CreateTorrent(ctx context.Context, name string, attrs domain.TorrentAttributes) (*domain.Torrent, error) {
	if name == "" {
		return nil, errors.New("torrent name is required")
	}
	if attrs.Link == "" && attrs.Magnet == "" && attrs.LocalFile == "" && attrs.InfoHash == "" {
		return nil, errors.New("at least one download source is required")
	}
	switch attrs.QueuePosition {
	case "", "top", "bottom":
	default:
		return nil, fmt.Errorf("invalid queue position %q", attrs.QueuePosition)
	}

	t := &domain.Torrent{
		Name:       name,
		Attributes: attrs,
		Status:     domain.StatusPending,
	}
	if err := s.torrents.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *torrentService) GetTorrent(ctx context.Context, name string) (*domain.Torrent, error) {
	return s.torrents.GetByName(ctx, name)
}

func (s *torrentService) ListTorrents(ctx context.Context) ([]domain.Torrent, error) {
	return s.torrents.List(ctx)
}

func (s *torrentService) ListByStatuses(ctx context.Context, statuses ...domain.Status) ([]domain.Torrent, error) {
	return s.torrents.ListByStatuses(ctx, statuses...)
}

// MarkProcessed records that a downstream import handled the download. The
// status only ever moves forward.
func (s *torrentService) MarkProcessed(ctx context.Context, name string) error {
	t, err := s.torrents.GetByName(ctx, name)
	if err != nil {
		return err
	}
	return s.torrents.UpdateStatus(ctx, name, domain.MaxStatus(t.Status, domain.StatusProcessed))
}
