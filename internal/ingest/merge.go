// Package ingest turns a scraped batch into one that a unique-key
// constrained store accepts in a single upsert.
package ingest

import (
	"go.uber.org/zap"

	"github.com/sells-group/character-scraper/internal/model"
)

// Batch is a conflict-free set of records for one site. Creators holds one
// entry per SiteUniqueIdentifier and Characters one entry per URL, both in
// first-seen order.
type Batch struct {
	Characters []model.Character
	Creators   []model.CreatorInput
}

// Empty reports whether the batch carries no characters.
func (b Batch) Empty() bool { return len(b.Characters) == 0 }

// MergeCreator folds incoming into existing and returns the result. Neither
// argument is modified. The first non-nil image wins, URLs are unioned in
// first-seen order and the larger known follower count is kept.
func MergeCreator(existing, incoming model.CreatorInput) model.CreatorInput {
	out := existing.Clone()
	out.URLs = unionURLs(existing.URLs, incoming.URLs)

	if out.ImageURL == nil && incoming.ImageURL != nil {
		v := *incoming.ImageURL
		out.ImageURL = &v
	}

	if incoming.FollowerCount != nil {
		if out.FollowerCount == nil || *incoming.FollowerCount > *out.FollowerCount {
			v := *incoming.FollowerCount
			out.FollowerCount = &v
		}
	}
	return out
}

func unionURLs(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// DedupCreators merges creators sharing a SiteUniqueIdentifier in
// encounter order.
func DedupCreators(creators []model.CreatorInput) []model.CreatorInput {
	m := newOrderedMap[model.CreatorInput](len(creators))
	for _, c := range creators {
		if prev, ok := m.get(c.SiteUniqueIdentifier); ok {
			m.set(c.SiteUniqueIdentifier, MergeCreator(prev, c))
			continue
		}
		// A lone creator still gets its own URL list deduplicated.
		m.set(c.SiteUniqueIdentifier, MergeCreator(c, model.CreatorInput{}))
	}
	return m.values()
}

// DedupCharacters keeps one record per URL. A later record replaces an
// earlier one outright but keeps the earlier one's position.
func DedupCharacters(chars []model.Character) []model.Character {
	m := newOrderedMap[model.Character](len(chars))
	for _, c := range chars {
		m.set(c.URL, c)
	}
	return m.values()
}

// Normalize merges creators across the whole input, then drops duplicate
// characters. Every surviving character references its merged creator.
func Normalize(chars []model.Character) Batch {
	if len(chars) == 0 {
		return Batch{}
	}

	creators := make([]model.CreatorInput, len(chars))
	for i, c := range chars {
		creators[i] = c.Creator
	}
	merged := DedupCreators(creators)

	byID := make(map[string]model.CreatorInput, len(merged))
	for _, c := range merged {
		byID[c.SiteUniqueIdentifier] = c
	}

	deduped := DedupCharacters(chars)
	for i := range deduped {
		deduped[i].Creator = byID[deduped[i].Creator.SiteUniqueIdentifier].Clone()
	}

	if dropped := len(chars) - len(deduped); dropped > 0 || len(merged) < len(chars) {
		zap.L().Debug("ingest: normalized batch",
			zap.Int("characters_in", len(chars)),
			zap.Int("characters_out", len(deduped)),
			zap.Int("creators_out", len(merged)),
		)
	}

	return Batch{Characters: deduped, Creators: merged}
}
