// Package torrentqueue drives a torrent download from accepted request to
// seeded-and-removed: submitting pending records to the transfer client,
// applying per-torrent options once the client reports them, and settling
// completed torrents against their tracker's seed-time target.
package torrentqueue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"fetcharr/internal/config"
	"fetcharr/internal/domain"
	"fetcharr/internal/repository"
	"fetcharr/internal/retryutil"
	"fetcharr/internal/transfer"
)

const (
	submitAttempts = 5
	applyAttempts  = 10
	applyBackoff   = 30 * time.Second

	// fallbackSeedTime applies when neither the tracker nor the client
	// config names a target.
	fallbackSeedTime = time.Hour
)

type Queue struct {
	repo     repository.TorrentRepository
	client   transfer.Client
	state    *State
	trackers func(name string) config.TrackerSettings
	logger   *logrus.Logger

	dataDir            string
	cacheDir           string
	defaultSeedTime    time.Duration
	removeOnCompletion bool

	submitBackoff time.Duration
	optionBackoff time.Duration
}

type Config struct {
	Repo     repository.TorrentRepository
	Client   transfer.Client
	State    *State
	Trackers func(name string) config.TrackerSettings
	Logger   *logrus.Logger

	DataDir            string
	CacheDir           string
	DefaultSeedTime    time.Duration
	RemoveOnCompletion bool
}

func New(cfg Config) *Queue {
	if cfg.State == nil {
		cfg.State = NewState()
	}
	if cfg.Trackers == nil {
		cfg.Trackers = func(string) config.TrackerSettings { return config.TrackerSettings{} }
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Queue{
		repo:               cfg.Repo,
		client:             cfg.Client,
		state:              cfg.State,
		trackers:           cfg.Trackers,
		logger:             cfg.Logger,
		dataDir:            cfg.DataDir,
		cacheDir:           cfg.CacheDir,
		defaultSeedTime:    cfg.DefaultSeedTime,
		removeOnCompletion: cfg.RemoveOnCompletion,
		submitBackoff:      time.Second,
		optionBackoff:      applyBackoff,
	}
}

// State exposes the transient work lists, primarily for wiring and
// inspection.
func (q *Queue) State() *State {
	return q.state
}

// ParsePendingDownloads submits every pending record to the transfer
// client. One bad record never stalls the scan. With failExhausted set, a
// record whose submission attempts are used up is marked failed instead of
// being left pending for the next scan.
func (q *Queue) ParsePendingDownloads(ctx context.Context, failExhausted bool) error {
	pending, err := q.repo.ListByStatuses(ctx, domain.StatusPending)
	if err != nil {
		return err
	}

	for i := range pending {
		if err := q.submitPending(ctx, &pending[i], failExhausted); err != nil {
			q.logger.WithError(err).WithField("torrent", pending[i].Name).
				Error("pending submission failed")
		}
	}
	return nil
}

func (q *Queue) submitPending(ctx context.Context, t *domain.Torrent, failExhausted bool) error {
	entry := q.logger.WithField("torrent", t.Name)

	src, err := q.resolveSource(t)
	if err != nil {
		return err
	}

	opts := transfer.AddOptions{
		SavePath: t.Attributes.SavePath,
		Category: t.Attributes.Category,
		Paused:   t.Attributes.AddPaused,
	}

	var id string
	err = retryutil.Do(ctx, submitAttempts, q.submitBackoff, nil, func() error {
		var addErr error
		id, addErr = q.client.Add(ctx, src, opts)
		if addErr != nil {
			entry.WithError(addErr).Debug("transfer client add attempt failed")
		}
		return addErr
	})
	if err != nil {
		entry.WithError(err).Errorf("giving up after %d attempts", submitAttempts)
		if id != "" {
			// A half-landed entry would block the next scan's resubmission.
			if remErr := q.client.Remove(ctx, id, true); remErr != nil {
				entry.WithError(remErr).Warn("cleanup of partial add failed")
			}
		}
		if failExhausted {
			return q.repo.UpdateStatus(ctx, t.Name, domain.StatusFailed)
		}
		return nil
	}

	// The id is unique across records; a hit here means this payload is
	// already being downloaded for another request.
	if existing, lookupErr := q.repo.GetByTorrentID(ctx, id); lookupErr == nil && existing.Name != t.Name {
		entry.WithField("owner", existing.Name).Warn("duplicate submission of an already-tracked payload")
		return q.repo.UpdateStatus(ctx, t.Name, domain.StatusFailed)
	} else if lookupErr != nil && !errors.Is(lookupErr, repository.ErrNotFound) {
		return lookupErr
	}

	if err := q.repo.SetTorrentID(ctx, t.Name, id, domain.StatusDownloading); err != nil {
		return err
	}
	q.state.PushAdded(id)
	entry.WithField("torrent_id", id).Infof("submitted via %s", src.Kind)
	return nil
}

// ProcessAddedTorrents drains the added-id list and applies each record's
// options inside the client: file restriction, rename, queue position and
// pause state. Each id gets bounded retries; an id that still fails is
// logged and dropped (its record stays downloading and unharmed).
func (q *Queue) ProcessAddedTorrents(ctx context.Context) error {
	ids := q.state.DrainAdded()
	if len(ids) == 0 {
		return nil
	}

	candidates, err := q.repo.ListByStatuses(ctx, domain.StatusPending, domain.StatusDownloading)
	if err != nil {
		return err
	}

	for _, id := range ids {
		err := retryutil.Do(ctx, applyAttempts, q.optionBackoff, nil, func() error {
			return q.applyAddedOptions(ctx, id, candidates)
		})
		if err != nil {
			q.logger.WithError(err).WithField("torrent_id", id).
				Errorf("options not applied after %d attempts", applyAttempts)
		}
	}
	return nil
}

func (q *Queue) applyAddedOptions(ctx context.Context, id string, candidates []domain.Torrent) error {
	status, err := q.client.Status(ctx, id)
	if err != nil {
		return err
	}

	match := correlate(status, candidates)
	if match.Kind == MatchNone {
		return fmt.Errorf("no record correlates to torrent %s (%q)", id, status.Name)
	}
	t := match.Record
	attrs := t.Attributes

	entry := q.logger.WithFields(logrus.Fields{
		"torrent":    t.Name,
		"torrent_id": id,
		"match":      match.Kind.String(),
	})

	files, err := q.client.Files(ctx, id)
	if err != nil {
		return err
	}

	main, found := findMainFile(files, attrs.WantedExtensions)
	if !found && attrs.MainFileOnly {
		entry.Warn("no acceptable payload file, cancelling download")
		if err := q.client.Remove(ctx, id, true); err != nil && !errors.Is(err, transfer.ErrTorrentNotFound) {
			return err
		}
		return q.repo.UpdateStatus(ctx, t.Name, domain.StatusFailed)
	}

	if found && attrs.MainFileOnly && len(files) > 1 {
		var skip []int
		for _, f := range files {
			if f.Index != main.Index {
				skip = append(skip, f.Index)
			}
		}
		if err := q.client.SetFilePriorities(ctx, id, skip, 0); err != nil {
			return err
		}
	}

	if found && attrs.RenameTo != "" {
		tags := qualityTags(status.Name)
		newPath := renderRename(attrs.RenameTo, t.Name, tags, main.Path)
		if newPath != main.Path {
			if err := q.client.RenameFile(ctx, id, main.Path, newPath); err != nil {
				return err
			}
		}
	}

	switch attrs.QueuePosition {
	case "top":
		if err := q.client.QueueTop(ctx, id); err != nil {
			return err
		}
	case "bottom":
		if err := q.client.QueueBottom(ctx, id); err != nil {
			return err
		}
	}

	if attrs.AddPaused {
		if err := q.client.Pause(ctx, id); err != nil {
			return err
		}
	} else if err := q.client.Resume(ctx, id); err != nil {
		return err
	}

	// Name-tier correlations may predate the id assignment (e.g. after a
	// rebuild of the transient state); persist it now.
	if t.TorrentID == "" {
		if err := q.repo.SetTorrentID(ctx, t.Name, id, domain.StatusDownloading); err != nil {
			return err
		}
	}

	entry.Info("torrent options applied")
	return nil
}

// ProcessCompletedTorrents settles finished torrents: newly-finished ones
// are baselined into the completed list, and every tracked entry is checked
// against its seed-time target. Entries that are not ready stay queued for
// the next poll.
func (q *Queue) ProcessCompletedTorrents(ctx context.Context) error {
	if err := q.scanFinished(ctx); err != nil {
		return err
	}

	for _, entry := range q.state.Completed() {
		if err := q.settleCompleted(ctx, entry); err != nil {
			q.logger.WithError(err).WithField("torrent_id", entry.ID).
				Error("completed settlement failed, will retry next poll")
		}
	}
	return nil
}

func (q *Queue) scanFinished(ctx context.Context) error {
	statuses, err := q.client.List(ctx)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		if !st.Finished {
			continue
		}
		if q.state.TrackCompleted(CompletedEntry{ID: st.ID, ActiveTime: st.ActiveTime}) {
			q.logger.WithFields(logrus.Fields{"torrent_id": st.ID, "name": st.Name}).
				Debug("finished torrent tracked for seed settlement")
		}
	}
	return nil
}

func (q *Queue) settleCompleted(ctx context.Context, entry CompletedEntry) error {
	record, err := q.repo.GetByTorrentID(ctx, entry.ID)
	if errors.Is(err, repository.ErrNotFound) {
		// Not ours. Clear it out of the client if configured to.
		if q.removeOnCompletion {
			if err := q.client.Remove(ctx, entry.ID, false); err != nil && !errors.Is(err, transfer.ErrTorrentNotFound) {
				return err
			}
		}
		q.state.DropCompleted(entry.ID)
		return nil
	}
	if err != nil {
		return err
	}

	status, err := q.client.Status(ctx, entry.ID)
	if errors.Is(err, transfer.ErrTorrentNotFound) {
		// The torrent vanished underneath us; no seed reading will ever
		// come. Clean up locally right away.
		q.logger.WithField("torrent", record.Name).Warn("torrent vanished from transfer client")
		q.dropCompleted(record, entry.ID)
		return nil
	}
	if err != nil {
		return err
	}

	elapsed := status.ActiveTime - entry.ActiveTime
	target := q.targetSeedTime(record.Attributes.Tracker)
	if elapsed < target {
		return nil
	}

	// A record pushed past seed-complete by a downstream import was
	// already pulled from the client at that point.
	if record.Status < domain.StatusProcessed {
		if err := q.client.Remove(ctx, entry.ID, false); err != nil && !errors.Is(err, transfer.ErrTorrentNotFound) {
			return err
		}
	}
	if err := q.repo.UpdateStatus(ctx, record.Name, domain.MaxStatus(record.Status, domain.StatusSeedComplete)); err != nil {
		return err
	}

	q.logger.WithFields(logrus.Fields{
		"torrent": record.Name,
		"seeded":  elapsed.Round(time.Second).String(),
		"target":  target.String(),
	}).Info("seed target met, torrent removed")
	q.dropCompleted(record, entry.ID)
	return nil
}

// dropCompleted forgets a tracked entry and removes its on-disk download
// path if still present.
func (q *Queue) dropCompleted(record *domain.Torrent, id string) {
	q.state.DropCompleted(id)

	path := q.downloadPath(record)
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		q.logger.WithError(err).WithField("path", path).Warn("download path cleanup failed")
	}
}

func (q *Queue) downloadPath(record *domain.Torrent) string {
	if record.Attributes.SavePath != "" {
		return filepath.Join(record.Attributes.SavePath, record.Name)
	}
	if q.dataDir == "" {
		return ""
	}
	return filepath.Join(q.dataDir, record.Name)
}

func (q *Queue) targetSeedTime(tracker string) time.Duration {
	if settings := q.trackers(tracker); settings.SeedTime > 0 {
		return settings.SeedTime
	}
	if q.defaultSeedTime > 0 {
		return q.defaultSeedTime
	}
	return fallbackSeedTime
}
