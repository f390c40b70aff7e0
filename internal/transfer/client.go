// Package transfer defines the capability contract against the external
// torrent transfer client. The rest of the system only sees this interface;
// the qBittorrent adapter lives alongside it.
package transfer

import (
	"context"
	"errors"
	"time"
)

// ErrTorrentNotFound is returned for any id the transfer client no longer
// knows. Callers distinguish it from transient RPC failures with errors.Is;
// it means the torrent vanished and local state should be cleaned up, not
// retried.
var ErrTorrentNotFound = errors.New("transfer: torrent not found")

// SourceKind tags how a torrent is handed to the client.
type SourceKind int

const (
	SourceLink   SourceKind = iota // direct URL to a .torrent file
	SourceMagnet                   // magnet URI
	SourceFile                     // raw .torrent payload
)

func (k SourceKind) String() string {
	switch k {
	case SourceLink:
		return "link"
	case SourceMagnet:
		return "magnet"
	case SourceFile:
		return "file"
	default:
		return "unknown"
	}
}

// Source is a resolved download source. URI is set for links and magnets,
// Data for raw payloads.
type Source struct {
	Kind SourceKind
	URI  string
	Data []byte
}

// AddOptions are applied at submission time.
type AddOptions struct {
	SavePath string
	Category string
	Paused   bool
}

// Status is a snapshot of one torrent inside the client. ActiveTime is the
// cumulative time the torrent has been active (downloading or seeding),
// which the completion policy diffs to measure seed time.
type Status struct {
	ID         string
	Name       string
	Progress   float64
	Finished   bool
	ActiveTime time.Duration
	State      string
	SavePath   string
}

// File is one payload file within a torrent.
type File struct {
	Index int
	Path  string
	Size  int64
}

// Client is the transfer-client capability: add, inspect and manage
// torrents by id. Add returns the client-assigned id (the infohash).
type Client interface {
	Add(ctx context.Context, src Source, opts AddOptions) (string, error)
	Status(ctx context.Context, id string) (Status, error)
	List(ctx context.Context) ([]Status, error)
	Files(ctx context.Context, id string) ([]File, error)
	SetFilePriorities(ctx context.Context, id string, indexes []int, priority int) error
	RenameFile(ctx context.Context, id, oldPath, newPath string) error
	QueueTop(ctx context.Context, ids ...string) error
	QueueBottom(ctx context.Context, ids ...string) error
	Pause(ctx context.Context, ids ...string) error
	Resume(ctx context.Context, ids ...string) error
	Remove(ctx context.Context, id string, deleteData bool) error
}
