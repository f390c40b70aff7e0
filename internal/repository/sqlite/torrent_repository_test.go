package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fetcharr/internal/domain"
	"fetcharr/internal/repository"
)

func newTestRepo(t *testing.T) repository.TorrentRepository {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "fetcharr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewTorrentRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestCreateAndGetByName(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	torrent := &domain.Torrent{
		Name:   "Some.Show.S01E01.1080p.WEB-DL",
		Status: domain.StatusPending,
		Attributes: domain.TorrentAttributes{
			Tracker:          "privatehd",
			Link:             "https://tracker.example/dl/123.torrent",
			Category:         "tv",
			WantedExtensions: []string{".mkv", ".mp4"},
		},
	}
	require.NoError(t, repo.Create(ctx, torrent))

	got, err := repo.GetByName(ctx, torrent.Name)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "privatehd", got.Attributes.Tracker)
	assert.Equal(t, []string{".mkv", ".mp4"}, got.Attributes.WantedExtensions)
	assert.Empty(t, got.TorrentID)
}

func TestGetByNameMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByName(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNameMustBeUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	torrent := &domain.Torrent{Name: "dupe", Status: domain.StatusPending}
	require.NoError(t, repo.Create(ctx, torrent))
	assert.Error(t, repo.Create(ctx, &domain.Torrent{Name: "dupe", Status: domain.StatusPending}))
}

func TestSetTorrentIDAdvancesStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.Torrent{Name: "a", Status: domain.StatusPending}))
	require.NoError(t, repo.SetTorrentID(ctx, "a", "deadbeef", domain.StatusDownloading))

	got, err := repo.GetByTorrentID(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, domain.StatusDownloading, got.Status)
}

func TestTorrentIDMustBeUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.Torrent{Name: "a", Status: domain.StatusPending}))
	require.NoError(t, repo.Create(ctx, &domain.Torrent{Name: "b", Status: domain.StatusPending}))

	require.NoError(t, repo.SetTorrentID(ctx, "a", "deadbeef", domain.StatusDownloading))
	assert.Error(t, repo.SetTorrentID(ctx, "b", "deadbeef", domain.StatusDownloading),
		"second record may not claim an assigned torrent id")
}

func TestListByStatuses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.Torrent{Name: "p1", Status: domain.StatusPending}))
	require.NoError(t, repo.Create(ctx, &domain.Torrent{Name: "p2", Status: domain.StatusPending}))
	require.NoError(t, repo.Create(ctx, &domain.Torrent{Name: "d1", Status: domain.StatusDownloading}))

	pending, err := repo.ListByStatuses(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	both, err := repo.ListByStatuses(ctx, domain.StatusPending, domain.StatusDownloading)
	require.NoError(t, err)
	assert.Len(t, both, 3)

	none, err := repo.ListByStatuses(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateStatusMissingRecord(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateStatus(context.Background(), "ghost", domain.StatusFailed)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateAttributesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.Torrent{Name: "a", Status: domain.StatusPending}))
	require.NoError(t, repo.UpdateAttributes(ctx, "a", domain.TorrentAttributes{
		InfoHash: "cafebabe",
		Magnet:   "magnet:?xt=urn:btih:cafebabe",
	}))

	got, err := repo.GetByName(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "cafebabe", got.Attributes.InfoHash)
}
