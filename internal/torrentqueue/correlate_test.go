package torrentqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fetcharr/internal/domain"
	"fetcharr/internal/transfer"
)

func TestCorrelateHashBeatsName(t *testing.T) {
	candidates := []domain.Torrent{
		{Name: "Some.Show.S01E01"},
		{Name: "Completely.Different", TorrentID: "abc123"},
	}

	m := correlate(transfer.Status{ID: "ABC123", Name: "Some.Show.S01E01"}, candidates)

	assert.Equal(t, MatchExactHash, m.Kind)
	assert.Equal(t, "Completely.Different", m.Record.Name)
}

func TestCorrelateStoredInfoHash(t *testing.T) {
	candidates := []domain.Torrent{
		{Name: "Waiting.For.Id", Attributes: domain.TorrentAttributes{InfoHash: "abc123"}},
	}

	m := correlate(transfer.Status{ID: "abc123", Name: "renamed-on-upload"}, candidates)

	assert.Equal(t, MatchExactHash, m.Kind)
	assert.Equal(t, "Waiting.For.Id", m.Record.Name)
}

func TestCorrelateExactNameBeatsFuzzy(t *testing.T) {
	candidates := []domain.Torrent{
		{Name: "Some.Show.S01E01.1080p"}, // near miss
		{Name: "Some.Show.S01E01.720p"},
	}

	m := correlate(transfer.Status{ID: "zzz", Name: "Some.Show.S01E01.720p"}, candidates)

	assert.Equal(t, MatchExactName, m.Kind)
	assert.Equal(t, "Some.Show.S01E01.720p", m.Record.Name)
}

func TestCorrelateFuzzyName(t *testing.T) {
	candidates := []domain.Torrent{
		{Name: "Some.Show.S01E01.1080p.WEB"},
	}

	// One character off, case-folded.
	m := correlate(transfer.Status{ID: "zzz", Name: "some.show.s01e01.1080p.wEB"}, candidates)

	assert.Equal(t, MatchFuzzyName, m.Kind)
	assert.Equal(t, "Some.Show.S01E01.1080p.WEB", m.Record.Name)
	assert.Greater(t, m.Score, fuzzyThreshold)
}

func TestCorrelateRejectsBelowThreshold(t *testing.T) {
	candidates := []domain.Torrent{
		{Name: "An.Entirely.Unrelated.Movie.2019"},
	}

	m := correlate(transfer.Status{ID: "zzz", Name: "Some.Show.S01E01.1080p"}, candidates)

	assert.Equal(t, MatchNone, m.Kind)
	assert.Nil(t, m.Record)
}

func TestCorrelateNoCandidates(t *testing.T) {
	m := correlate(transfer.Status{ID: "abc", Name: "anything"}, nil)
	assert.Equal(t, MatchNone, m.Kind)
}

func TestNameSimilarityBoundedPrefix(t *testing.T) {
	// Differences beyond the bounded prefix do not count against the score.
	long := "this is a long shared prefix exceeding the bound"
	assert.Equal(t, 1.0, nameSimilarity(long+" AAA", long+" BBB"))

	assert.Equal(t, 0.0, nameSimilarity("", "anything"))
}
