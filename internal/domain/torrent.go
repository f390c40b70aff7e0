package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status tracks a torrent download through its lifecycle. Values are ordered:
// later stages compare greater, so a record is only ever advanced with
// MaxStatus and never regresses.
type Status int

const (
	StatusPending      Status = 2 // accepted for download, not yet in the transfer client
	StatusDownloading  Status = 3 // added to the transfer client
	StatusSeedComplete Status = 4 // seeded past the tracker target, removed from the client
	StatusProcessed    Status = 5 // handled by a downstream import step
	StatusFailed       Status = 6 // download attempts exhausted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloading:
		return "downloading"
	case StatusSeedComplete:
		return "seed_complete"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MaxStatus returns the later of two lifecycle stages.
func MaxStatus(a, b Status) Status {
	if a > b {
		return a
	}
	return b
}

// Torrent is the persisted record for one download, keyed by its
// human-readable name. TorrentID is the transfer-client-assigned identifier
// (the infohash), unique once set.
type Torrent struct {
	Name       string
	Attributes TorrentAttributes
	Status     Status
	TorrentID  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// attributesVersion is bumped when TorrentAttributes gains fields with
// changed meaning; readers of older blobs get zero values.
const attributesVersion = 1

// TorrentAttributes is the typed option bag attached to a torrent request
// when a search result is accepted. It is serialized as JSON into the
// record's attributes column.
type TorrentAttributes struct {
	Version int    `json:"version"`
	Tracker string `json:"tracker,omitempty"`

	// Download sources, in submission priority order.
	Link      string `json:"link,omitempty"`
	Magnet    string `json:"magnet,omitempty"`
	LocalFile string `json:"local_file,omitempty"`
	InfoHash  string `json:"info_hash,omitempty"`

	Category string `json:"category,omitempty"`
	SavePath string `json:"save_path,omitempty"`

	// File handling applied once the torrent shows up in the client.
	RenameTo         string   `json:"rename_to,omitempty"`
	WantedExtensions []string `json:"wanted_extensions,omitempty"`
	MainFileOnly     bool     `json:"main_file_only,omitempty"`

	AddPaused     bool   `json:"add_paused,omitempty"`
	QueuePosition string `json:"queue_position,omitempty"` // "top", "bottom" or empty
}

// EncodeAttributes serializes attributes for storage, stamping the current
// schema version.
func EncodeAttributes(a TorrentAttributes) (string, error) {
	a.Version = attributesVersion
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode torrent attributes: %w", err)
	}
	return string(raw), nil
}

// DecodeAttributes parses a stored attributes blob. An empty blob decodes to
// the zero value.
func DecodeAttributes(raw string) (TorrentAttributes, error) {
	var a TorrentAttributes
	if raw == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return TorrentAttributes{}, fmt.Errorf("decode torrent attributes: %w", err)
	}
	return a, nil
}
