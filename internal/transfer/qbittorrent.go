package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	qbt "github.com/autobrr/go-qbittorrent"
)

// QBittorrent adapts the qBittorrent WebAPI to the Client capability. The
// WebAPI add endpoint does not return an identifier, so the adapter computes
// the infohash itself from the magnet URI or the torrent payload before
// submitting.
type QBittorrent struct {
	client *qbt.Client
	http   *http.Client
}

type QBittorrentConfig struct {
	Host     string
	Username string
	Password string
}

func NewQBittorrent(cfg QBittorrentConfig) *QBittorrent {
	return &QBittorrent{
		client: qbt.NewClient(qbt.Config{
			Host:     cfg.Host,
			Username: cfg.Username,
			Password: cfg.Password,
		}),
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Login authenticates against the WebAPI; call once at startup.
func (q *QBittorrent) Login(ctx context.Context) error {
	if err := q.client.LoginCtx(ctx); err != nil {
		return fmt.Errorf("qbittorrent login: %w", err)
	}
	return nil
}

func (q *QBittorrent) Add(ctx context.Context, src Source, opts AddOptions) (string, error) {
	options := map[string]string{}
	if opts.SavePath != "" {
		options["savepath"] = opts.SavePath
	}
	if opts.Category != "" {
		options["category"] = opts.Category
	}
	if opts.Paused {
		options["paused"] = "true"
		options["stopped"] = "true"
	}

	switch src.Kind {
	case SourceMagnet:
		magnet, err := metainfo.ParseMagnetUri(src.URI)
		if err != nil {
			return "", fmt.Errorf("parse magnet: %w", err)
		}
		if err := q.client.AddTorrentFromUrlCtx(ctx, src.URI, options); err != nil {
			return "", fmt.Errorf("add magnet: %w", err)
		}
		return magnet.InfoHash.HexString(), nil

	case SourceLink:
		payload, err := q.fetchTorrent(ctx, src.URI)
		if err != nil {
			return "", err
		}
		return q.addPayload(ctx, payload, options)

	case SourceFile:
		return q.addPayload(ctx, src.Data, options)

	default:
		return "", fmt.Errorf("unsupported source kind %v", src.Kind)
	}
}

func (q *QBittorrent) addPayload(ctx context.Context, payload []byte, options map[string]string) (string, error) {
	mi, err := metainfo.Load(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("parse torrent payload: %w", err)
	}
	hash := mi.HashInfoBytes().HexString()
	if err := q.client.AddTorrentFromMemoryCtx(ctx, payload, options); err != nil {
		return "", fmt.Errorf("add torrent: %w", err)
	}
	return hash, nil
}

func (q *QBittorrent) fetchTorrent(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build torrent request: %w", err)
	}
	resp, err := q.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch torrent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch torrent: unexpected status %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read torrent payload: %w", err)
	}
	return payload, nil
}

func (q *QBittorrent) Status(ctx context.Context, id string) (Status, error) {
	torrents, err := q.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{id}})
	if err != nil {
		return Status{}, fmt.Errorf("get torrent %s: %w", id, err)
	}
	if len(torrents) == 0 {
		return Status{}, fmt.Errorf("torrent %s: %w", id, ErrTorrentNotFound)
	}
	return statusFromTorrent(torrents[0]), nil
}

func (q *QBittorrent) List(ctx context.Context) ([]Status, error) {
	torrents, err := q.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}
	statuses := make([]Status, len(torrents))
	for i, t := range torrents {
		statuses[i] = statusFromTorrent(t)
	}
	return statuses, nil
}

func statusFromTorrent(t qbt.Torrent) Status {
	return Status{
		ID:         t.Hash,
		Name:       t.Name,
		Progress:   t.Progress,
		Finished:   t.Progress >= 1,
		ActiveTime: time.Duration(t.TimeActive) * time.Second,
		State:      string(t.State),
		SavePath:   t.SavePath,
	}
}

func (q *QBittorrent) Files(ctx context.Context, id string) ([]File, error) {
	info, err := q.client.GetFilesInformationCtx(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get files for %s: %w", id, err)
	}
	if info == nil {
		return nil, fmt.Errorf("torrent %s files: %w", id, ErrTorrentNotFound)
	}
	files := make([]File, 0, len(*info))
	for _, f := range *info {
		files = append(files, File{Index: f.Index, Path: f.Name, Size: f.Size})
	}
	return files, nil
}

func (q *QBittorrent) SetFilePriorities(ctx context.Context, id string, indexes []int, priority int) error {
	ids := make([]string, len(indexes))
	for i, idx := range indexes {
		ids[i] = strconv.Itoa(idx)
	}
	if err := q.client.SetFilePriorityCtx(ctx, id, strings.Join(ids, "|"), priority); err != nil {
		return fmt.Errorf("set file priorities for %s: %w", id, err)
	}
	return nil
}

func (q *QBittorrent) RenameFile(ctx context.Context, id, oldPath, newPath string) error {
	if err := q.client.RenameFileCtx(ctx, id, oldPath, newPath); err != nil {
		return fmt.Errorf("rename file for %s: %w", id, err)
	}
	return nil
}

func (q *QBittorrent) QueueTop(ctx context.Context, ids ...string) error {
	if err := q.client.SetMaxPriorityCtx(ctx, ids); err != nil {
		return fmt.Errorf("queue top: %w", err)
	}
	return nil
}

func (q *QBittorrent) QueueBottom(ctx context.Context, ids ...string) error {
	if err := q.client.SetMinPriorityCtx(ctx, ids); err != nil {
		return fmt.Errorf("queue bottom: %w", err)
	}
	return nil
}

func (q *QBittorrent) Pause(ctx context.Context, ids ...string) error {
	if err := q.client.PauseCtx(ctx, ids); err != nil {
		return fmt.Errorf("pause torrents: %w", err)
	}
	return nil
}

func (q *QBittorrent) Resume(ctx context.Context, ids ...string) error {
	if err := q.client.ResumeCtx(ctx, ids); err != nil {
		return fmt.Errorf("resume torrents: %w", err)
	}
	return nil
}

func (q *QBittorrent) Remove(ctx context.Context, id string, deleteData bool) error {
	if err := q.client.DeleteTorrentsCtx(ctx, []string{id}, deleteData); err != nil {
		return fmt.Errorf("remove torrent %s: %w", id, err)
	}
	return nil
}

var _ Client = (*QBittorrent)(nil)
