package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/character-scraper/internal/db"
	"github.com/sells-group/character-scraper/internal/ingest"
	"github.com/sells-group/character-scraper/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sites (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL,
	is_enabled BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS creators (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	site_id                TEXT NOT NULL REFERENCES sites(id),
	site_unique_identifier TEXT NOT NULL,
	name                   TEXT NOT NULL,
	image_url              TEXT,
	urls                   JSONB NOT NULL DEFAULT '[]',
	follower_count         BIGINT,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (site_id, site_unique_identifier)
);

CREATE TABLE IF NOT EXISTS characters (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url           TEXT NOT NULL UNIQUE,
	site_id       TEXT NOT NULL REFERENCES sites(id),
	creator_id    TEXT NOT NULL REFERENCES creators(id),
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL,
	chat_count    BIGINT,
	message_count BIGINT,
	like_count    BIGINT,
	token_count   BIGINT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tags (
	id   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name TEXT NOT NULL,
	type SMALLINT NOT NULL,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListSites(ctx context.Context, enabledOnly bool) ([]model.Site, error) {
	query := `SELECT id, name, url, is_enabled FROM sites`
	if enabledOnly {
		query += ` WHERE is_enabled`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sites")
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		var site model.Site
		if err := rows.Scan(&site.ID, &site.Name, &site.URL, &site.IsEnabled); err != nil {
			return nil, eris.Wrap(err, "postgres: scan site")
		}
		sites = append(sites, site)
	}
	return sites, eris.Wrap(rows.Err(), "postgres: list sites iterate")
}

func (s *PostgresStore) UpsertSite(ctx context.Context, site model.Site) (*model.Site, error) {
	sql, err := db.UpsertSQL(siteUpsert(db.Postgres), 1)
	if err != nil {
		return nil, err
	}
	out := site
	if err := s.pool.QueryRow(ctx, sql, uuid.NewString(), site.Name, site.URL, site.IsEnabled).Scan(&out.ID); err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert site %s", site.Name)
	}
	return &out, nil
}

func (s *PostgresStore) UpsertBatch(ctx context.Context, siteID string, batch ingest.Batch) ([]CharacterRow, error) {
	if batch.Empty() {
		return nil, nil
	}
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert batch: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	creatorIDs := make(map[string]string, len(batch.Creators))
	for _, span := range db.Chunk(len(batch.Creators), maxRowsPerStatement) {
		part := batch.Creators[span[0]:span[1]]
		sql, err := db.UpsertSQL(creatorUpsert(db.Postgres), len(part))
		if err != nil {
			return nil, err
		}
		args := make([]any, 0, len(part)*len(creatorColumns))
		for _, c := range part {
			urls, err := encodeURLs(c.URLs)
			if err != nil {
				return nil, err
			}
			args = append(args, uuid.NewString(), siteID, c.SiteUniqueIdentifier, c.Name, c.ImageURL, urls, c.FollowerCount, now)
		}
		if err := collectPairs(ctx, tx, sql, args, creatorIDs); err != nil {
			return nil, eris.Wrapf(err, "postgres: upsert creators for site %s", siteID)
		}
	}

	out := make([]CharacterRow, 0, len(batch.Characters))
	for _, span := range db.Chunk(len(batch.Characters), maxRowsPerStatement) {
		part := batch.Characters[span[0]:span[1]]
		sql, err := db.UpsertSQL(characterUpsert(db.Postgres), len(part))
		if err != nil {
			return nil, err
		}
		args := make([]any, 0, len(part)*len(characterColumns))
		for _, c := range part {
			creatorID, ok := creatorIDs[c.Creator.SiteUniqueIdentifier]
			if !ok {
				return nil, eris.Errorf("postgres: no id returned for creator %q", c.Creator.SiteUniqueIdentifier)
			}
			args = append(args, uuid.NewString(), c.URL, siteID, creatorID, c.Name, c.Description, c.ImageURL,
				c.ChatCount, c.MessageCount, c.LikeCount, c.TokenCount, now)
		}

		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: upsert characters for site %s", siteID)
		}
		for rows.Next() {
			var r CharacterRow
			if err := rows.Scan(&r.ID, &r.URL, &r.CreatorID); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "postgres: scan character row")
			}
			out = append(out, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, eris.Wrapf(err, "postgres: upsert characters for site %s", siteID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert batch: commit tx")
	}

	zap.L().Debug("postgres: upserted batch",
		zap.String("site_id", siteID),
		zap.Int("creators", len(creatorIDs)),
		zap.Int("characters", len(out)),
	)
	return out, nil
}

// collectPairs runs a RETURNING (id, key) statement and records key -> id.
func collectPairs(ctx context.Context, tx pgx.Tx, sql string, args []any, into map[string]string) error {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return err
		}
		into[key] = id
	}
	return rows.Err()
}

func (s *PostgresStore) GetCharacter(ctx context.Context, id string) (*TaggingCandidate, error) {
	var c TaggingCandidate
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description FROM characters WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: character %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get character %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) CharactersForTagging(ctx context.Context, limit int) ([]TaggingCandidate, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.name, c.description FROM characters c
		 WHERE c.name <> '' AND c.description <> ''
		   AND NOT EXISTS (SELECT 1 FROM character_tags ct WHERE ct.character_id = c.id)
		 ORDER BY c.created_at, c.id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: characters for tagging")
	}
	defer rows.Close()

	var out []TaggingCandidate
	for rows.Next() {
		var c TaggingCandidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tagging candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: characters for tagging iterate")
}

func (s *PostgresStore) UpsertTags(ctx context.Context, names []string, tagType model.TagType) ([]string, error) {
	names = normalizeTagNames(names)
	if len(names) == 0 {
		return nil, nil
	}
	sql, err := db.UpsertSQL(tagUpsert(db.Postgres), len(names))
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(names)*3)
	for _, n := range names {
		args = append(args, uuid.NewString(), n, int(tagType))
	}

	byName := make(map[string]string, len(names))
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert %s tags", tagType)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tag")
		}
		byName[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert %s tags", tagType)
	}

	ids := make([]string, 0, len(names))
	for _, n := range names {
		if id, ok := byName[n]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *PostgresStore) TagCharacter(ctx context.Context, characterID string, tagIDs []string) error {
	tagIDs = dedupIDs(tagIDs)
	if len(tagIDs) == 0 {
		return nil
	}
	sql, err := db.UpsertSQL(characterTagInsert(db.Postgres), len(tagIDs))
	if err != nil {
		return err
	}
	args := make([]any, 0, len(tagIDs)*2)
	for _, id := range tagIDs {
		args = append(args, characterID, id)
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return eris.Wrapf(err, "postgres: tag character %s", characterID)
	}
	return nil
}
