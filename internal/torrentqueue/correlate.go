package torrentqueue

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"fetcharr/internal/domain"
	"fetcharr/internal/transfer"
)

// The transfer client is not guaranteed to expose the originating request
// name, so an added torrent is correlated back to its record through a
// strict fallback chain: stored info-hash, exact name, then fuzzy name
// similarity. The fuzzy tier exists because some trackers truncate or
// mutate names on upload.
const (
	// fuzzyThreshold is the minimum normalized similarity for a fuzzy
	// name match to count.
	fuzzyThreshold = 0.9
	// fuzzyPrefixLen bounds how much of each name feeds the similarity
	// computation.
	fuzzyPrefixLen = 30
)

// MatchKind tags which tier of the chain produced a correlation.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExactHash
	MatchExactName
	MatchFuzzyName
)

func (k MatchKind) String() string {
	switch k {
	case MatchExactHash:
		return "exact_hash"
	case MatchExactName:
		return "exact_name"
	case MatchFuzzyName:
		return "fuzzy_name"
	default:
		return "none"
	}
}

// Match is the outcome of correlating one client torrent against the
// candidate records. Score is only meaningful for fuzzy matches.
type Match struct {
	Kind   MatchKind
	Record *domain.Torrent
	Score  float64
}

// correlate resolves a client torrent to a record. Tiers are evaluated in
// strict priority order: an info-hash match wins over any name match, an
// exact name over any fuzzy score.
func correlate(status transfer.Status, candidates []domain.Torrent) Match {
	best := Match{Kind: MatchNone}

	for i := range candidates {
		c := &candidates[i]
		if matchesHash(c, status.ID) {
			return Match{Kind: MatchExactHash, Record: c}
		}

		if c.Name == status.Name {
			if best.Kind < MatchExactName {
				best = Match{Kind: MatchExactName, Record: c}
			}
			continue
		}

		if best.Kind >= MatchExactName {
			continue
		}
		score := nameSimilarity(c.Name, status.Name)
		if score > fuzzyThreshold && score > best.Score {
			best = Match{Kind: MatchFuzzyName, Record: c, Score: score}
		}
	}

	return best
}

func matchesHash(c *domain.Torrent, id string) bool {
	if id == "" {
		return false
	}
	return strings.EqualFold(c.TorrentID, id) || strings.EqualFold(c.Attributes.InfoHash, id)
}

// nameSimilarity computes normalized Levenshtein similarity over a bounded
// case-folded prefix of both names.
func nameSimilarity(a, b string) float64 {
	a = boundedPrefix(strings.ToLower(a))
	b = boundedPrefix(strings.ToLower(b))
	if a == "" || b == "" {
		return 0
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

func boundedPrefix(s string) string {
	runes := []rune(s)
	if len(runes) > fuzzyPrefixLen {
		return string(runes[:fuzzyPrefixLen])
	}
	return s
}
