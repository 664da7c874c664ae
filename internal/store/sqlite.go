package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/character-scraper/internal/db"
	"github.com/sells-group/character-scraper/internal/ingest"
	"github.com/sells-group/character-scraper/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sites (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL,
	is_enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS creators (
	id                     TEXT PRIMARY KEY,
	site_id                TEXT NOT NULL REFERENCES sites(id),
	site_unique_identifier TEXT NOT NULL,
	name                   TEXT NOT NULL,
	image_url              TEXT,
	urls                   TEXT NOT NULL DEFAULT '[]',
	follower_count         INTEGER,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (site_id, site_unique_identifier)
);

CREATE TABLE IF NOT EXISTS characters (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL UNIQUE,
	site_id       TEXT NOT NULL REFERENCES sites(id),
	creator_id    TEXT NOT NULL REFERENCES creators(id),
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL,
	chat_count    INTEGER,
	message_count INTEGER,
	like_count    INTEGER,
	token_count   INTEGER,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tags (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type INTEGER NOT NULL,
	UNIQUE (name, type)
);

CREATE TABLE IF NOT EXISTS character_tags (
	character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
	tag_id       TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (character_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_characters_creator_id ON characters(creator_id);
CREATE INDEX IF NOT EXISTS idx_characters_site_id ON characters(site_id);
CREATE INDEX IF NOT EXISTS idx_character_tags_tag_id ON character_tags(tag_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListSites(ctx context.Context, enabledOnly bool) ([]model.Site, error) {
	query := `SELECT id, name, url, is_enabled FROM sites`
	if enabledOnly {
		query += ` WHERE is_enabled`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sites")
	}
	defer rows.Close() //nolint:errcheck

	var sites []model.Site
	for rows.Next() {
		var site model.Site
		if err := rows.Scan(&site.ID, &site.Name, &site.URL, &site.IsEnabled); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan site")
		}
		sites = append(sites, site)
	}
	return sites, eris.Wrap(rows.Err(), "sqlite: list sites iterate")
}

func (s *SQLiteStore) UpsertSite(ctx context.Context, site model.Site) (*model.Site, error) {
	query, err := db.UpsertSQL(siteUpsert(db.SQLite), 1)
	if err != nil {
		return nil, err
	}
	out := site
	if err := s.db.QueryRowContext(ctx, query, uuid.NewString(), site.Name, site.URL, site.IsEnabled).Scan(&out.ID); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert site %s", site.Name)
	}
	return &out, nil
}

func (s *SQLiteStore) UpsertBatch(ctx context.Context, siteID string, batch ingest.Batch) ([]CharacterRow, error) {
	if batch.Empty() {
		return nil, nil
	}
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert batch: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	creatorIDs := make(map[string]string, len(batch.Creators))
	for _, span := range db.Chunk(len(batch.Creators), maxRowsPerStatement) {
		part := batch.Creators[span[0]:span[1]]
		query, err := db.UpsertSQL(creatorUpsert(db.SQLite), len(part))
		if err != nil {
			return nil, err
		}
		args := make([]any, 0, len(part)*len(creatorColumns))
		for _, c := range part {
			urls, err := encodeURLs(c.URLs)
			if err != nil {
				return nil, err
			}
			args = append(args, uuid.NewString(), siteID, c.SiteUniqueIdentifier, c.Name, c.ImageURL, string(urls), c.FollowerCount, now)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert creators for site %s", siteID)
		}
		for rows.Next() {
			var id, key string
			if err := rows.Scan(&id, &key); err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrap(err, "sqlite: scan creator row")
			}
			creatorIDs[key] = id
		}
		rows.Close() //nolint:errcheck
		if err := rows.Err(); err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert creators for site %s", siteID)
		}
	}

	out := make([]CharacterRow, 0, len(batch.Characters))
	for _, span := range db.Chunk(len(batch.Characters), maxRowsPerStatement) {
		part := batch.Characters[span[0]:span[1]]
		query, err := db.UpsertSQL(characterUpsert(db.SQLite), len(part))
		if err != nil {
			return nil, err
		}
		args := make([]any, 0, len(part)*len(characterColumns))
		for _, c := range part {
			creatorID, ok := creatorIDs[c.Creator.SiteUniqueIdentifier]
			if !ok {
				return nil, eris.Errorf("sqlite: no id returned for creator %q", c.Creator.SiteUniqueIdentifier)
			}
			args = append(args, uuid.NewString(), c.URL, siteID, creatorID, c.Name, c.Description, c.ImageURL,
				c.ChatCount, c.MessageCount, c.LikeCount, c.TokenCount, now)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert characters for site %s", siteID)
		}
		for rows.Next() {
			var r CharacterRow
			if err := rows.Scan(&r.ID, &r.URL, &r.CreatorID); err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrap(err, "sqlite: scan character row")
			}
			out = append(out, r)
		}
		rows.Close() //nolint:errcheck
		if err := rows.Err(); err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert characters for site %s", siteID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert batch: commit tx")
	}
	return out, nil
}

func (s *SQLiteStore) GetCharacter(ctx context.Context, id string) (*TaggingCandidate, error) {
	var c TaggingCandidate
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM characters WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: character %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get character %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) CharactersForTagging(ctx context.Context, limit int) ([]TaggingCandidate, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.description FROM characters c
		 WHERE c.name <> '' AND c.description <> ''
		   AND NOT EXISTS (SELECT 1 FROM character_tags ct WHERE ct.character_id = c.id)
		 ORDER BY c.created_at, c.rowid
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: characters for tagging")
	}
	defer rows.Close() //nolint:errcheck

	var out []TaggingCandidate
	for rows.Next() {
		var c TaggingCandidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tagging candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: characters for tagging iterate")
}

func (s *SQLiteStore) UpsertTags(ctx context.Context, names []string, tagType model.TagType) ([]string, error) {
	names = normalizeTagNames(names)
	if len(names) == 0 {
		return nil, nil
	}
	query, err := db.UpsertSQL(tagUpsert(db.SQLite), len(names))
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(names)*3)
	for _, n := range names {
		args = append(args, uuid.NewString(), n, int(tagType))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert %s tags", tagType)
	}
	defer rows.Close() //nolint:errcheck

	byName := make(map[string]string, len(names))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tag")
		}
		byName[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert %s tags", tagType)
	}

	ids := make([]string, 0, len(names))
	for _, n := range names {
		if id, ok := byName[n]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *SQLiteStore) TagCharacter(ctx context.Context, characterID string, tagIDs []string) error {
	tagIDs = dedupIDs(tagIDs)
	if len(tagIDs) == 0 {
		return nil
	}
	query, err := db.UpsertSQL(characterTagInsert(db.SQLite), len(tagIDs))
	if err != nil {
		return err
	}
	args := make([]any, 0, len(tagIDs)*2)
	for _, id := range tagIDs {
		args = append(args, characterID, id)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "sqlite: tag character %s", characterID)
	}
	return nil
}
