// Package store persists sites, creators, characters and tags.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/character-scraper/internal/db"
	"github.com/sells-group/character-scraper/internal/ingest"
	"github.com/sells-group/character-scraper/internal/model"
)

var (
	// ErrDuplicateKey is returned by UpsertBatch when the batch was not
	// normalized. The database would reject it anyway.
	ErrDuplicateKey = eris.New("store: batch contains duplicate keys")
	// ErrNotFound is returned when a lookup by id matches nothing.
	ErrNotFound = eris.New("store: not found")
)

// maxRowsPerStatement bounds the VALUES list of one upsert statement.
const maxRowsPerStatement = 500

// CharacterRow is the storage identity assigned to an upserted character.
type CharacterRow struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	CreatorID string `json:"creator_id"`
}

// TaggingCandidate is a stored character awaiting tags.
type TaggingCandidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Store defines the persistence interface for scraped data.
type Store interface {
	// Sites
	ListSites(ctx context.Context, enabledOnly bool) ([]model.Site, error)
	UpsertSite(ctx context.Context, site model.Site) (*model.Site, error)

	// Characters. UpsertBatch writes creators keyed on (site, unique
	// identifier) then characters keyed on url, in one transaction.
	UpsertBatch(ctx context.Context, siteID string, batch ingest.Batch) ([]CharacterRow, error)
	GetCharacter(ctx context.Context, id string) (*TaggingCandidate, error)

	// Tags
	CharactersForTagging(ctx context.Context, limit int) ([]TaggingCandidate, error)
	UpsertTags(ctx context.Context, names []string, tagType model.TagType) ([]string, error)
	TagCharacter(ctx context.Context, characterID string, tagIDs []string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// validateBatch rejects batches that would make a multi-row upsert touch the
// same row twice, and characters whose creator is not in the batch.
func validateBatch(b ingest.Batch) error {
	creators := make(map[string]struct{}, len(b.Creators))
	for _, c := range b.Creators {
		if _, ok := creators[c.SiteUniqueIdentifier]; ok {
			return eris.Wrapf(ErrDuplicateKey, "creator %q", c.SiteUniqueIdentifier)
		}
		creators[c.SiteUniqueIdentifier] = struct{}{}
	}
	urls := make(map[string]struct{}, len(b.Characters))
	for _, c := range b.Characters {
		if _, ok := urls[c.URL]; ok {
			return eris.Wrapf(ErrDuplicateKey, "character %q", c.URL)
		}
		urls[c.URL] = struct{}{}
		if _, ok := creators[c.Creator.SiteUniqueIdentifier]; !ok {
			return eris.Errorf("store: character %q references creator %q missing from batch", c.URL, c.Creator.SiteUniqueIdentifier)
		}
	}
	return nil
}

var (
	creatorColumns   = []string{"id", "site_id", "site_unique_identifier", "name", "image_url", "urls", "follower_count", "updated_at"}
	characterColumns = []string{"id", "url", "site_id", "creator_id", "name", "description", "image_url", "chat_count", "message_count", "like_count", "token_count", "updated_at"}
)

func creatorUpsert(d db.Dialect) db.UpsertConfig {
	return db.UpsertConfig{
		Table:        "creators",
		Columns:      creatorColumns,
		ConflictKeys: []string{"site_id", "site_unique_identifier"},
		UpdateCols:   []string{"name", "image_url", "urls", "follower_count", "updated_at"},
		Returning:    []string{"id", "site_unique_identifier"},
		Dialect:      d,
	}
}

func characterUpsert(d db.Dialect) db.UpsertConfig {
	return db.UpsertConfig{
		Table:        "characters",
		Columns:      characterColumns,
		ConflictKeys: []string{"url"},
		UpdateCols:   []string{"site_id", "creator_id", "name", "description", "image_url", "chat_count", "message_count", "like_count", "token_count", "updated_at"},
		Returning:    []string{"id", "url", "creator_id"},
		Dialect:      d,
	}
}

func tagUpsert(d db.Dialect) db.UpsertConfig {
	return db.UpsertConfig{
		Table:        "tags",
		Columns:      []string{"id", "name", "type"},
		ConflictKeys: []string{"name", "type"},
		UpdateCols:   []string{"name"},
		Returning:    []string{"id", "name"},
		Dialect:      d,
	}
}

func characterTagInsert(d db.Dialect) db.UpsertConfig {
	return db.UpsertConfig{
		Table:        "character_tags",
		Columns:      []string{"character_id", "tag_id"},
		ConflictKeys: []string{"character_id", "tag_id"},
		DoNothing:    true,
		Dialect:      d,
	}
}

func siteUpsert(d db.Dialect) db.UpsertConfig {
	return db.UpsertConfig{
		Table:        "sites",
		Columns:      []string{"id", "name", "url", "is_enabled"},
		ConflictKeys: []string{"name"},
		UpdateCols:   []string{"url", "is_enabled"},
		Returning:    []string{"id"},
		Dialect:      d,
	}
}

func encodeURLs(urls []string) ([]byte, error) {
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	return data, eris.Wrap(err, "store: marshal creator urls")
}

// normalizeTagNames lowercases, trims and deduplicates tag names, keeping
// first-seen order and dropping blanks.
func normalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
