package torrentqueue

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"fetcharr/internal/domain"
	"fetcharr/internal/transfer"
)

// resolveSource picks the download source for a pending record in strict
// priority order: direct link, magnet, cached local torrent file, and as a
// last resort a bare magnet built from the stored info-hash. Trackers
// flagged no_download never get the direct link (they forbid fetching the
// torrent file outside the browser session).
func (q *Queue) resolveSource(t *domain.Torrent) (transfer.Source, error) {
	attrs := t.Attributes
	tracker := q.trackers(attrs.Tracker)

	if attrs.Link != "" && !tracker.NoDownload {
		return transfer.Source{Kind: transfer.SourceLink, URI: attrs.Link}, nil
	}
	if attrs.Magnet != "" {
		return transfer.Source{Kind: transfer.SourceMagnet, URI: attrs.Magnet}, nil
	}
	if path := q.cachedTorrentPath(t); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return transfer.Source{}, fmt.Errorf("read cached torrent: %w", err)
		}
		return transfer.Source{Kind: transfer.SourceFile, Data: data}, nil
	}
	if attrs.InfoHash != "" {
		return transfer.Source{Kind: transfer.SourceMagnet, URI: placeholderMagnet(attrs.InfoHash, t.Name)}, nil
	}
	return transfer.Source{}, fmt.Errorf("torrent %s: no usable download source", t.Name)
}

func (q *Queue) cachedTorrentPath(t *domain.Torrent) string {
	if t.Attributes.LocalFile != "" {
		if _, err := os.Stat(t.Attributes.LocalFile); err == nil {
			return t.Attributes.LocalFile
		}
	}
	if q.cacheDir == "" {
		return ""
	}
	path := filepath.Join(q.cacheDir, t.Name+".torrent")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// placeholderMagnet builds a minimal magnet URI for trackers that expose
// neither a link nor a magnet; the client resolves the rest via DHT.
func placeholderMagnet(infoHash, name string) string {
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", infoHash, url.QueryEscape(name))
}
