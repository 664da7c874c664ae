package tagging

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/character-scraper/internal/model"
	"github.com/sells-group/character-scraper/internal/store"
)

// Store is the persistence surface tagging needs.
type Store interface {
	CharactersForTagging(ctx context.Context, limit int) ([]store.TaggingCandidate, error)
	GetCharacter(ctx context.Context, id string) (*store.TaggingCandidate, error)
	UpsertTags(ctx context.Context, names []string, tagType model.TagType) ([]string, error)
	TagCharacter(ctx context.Context, characterID string, tagIDs []string) error
}

// Runner tags stored characters.
type Runner struct {
	store         Store
	tagger        Tagger
	maxConcurrent int
}

// Result summarizes a TagPending run.
type Result struct {
	Queued int `json:"characters_queued" yaml:"characters_queued"`
	Tagged int `json:"characters_tagged" yaml:"characters_tagged"`
	Failed int `json:"characters_failed" yaml:"characters_failed"`
}

// NewRunner creates a Runner that tags up to maxConcurrent characters at once.
func NewRunner(st Store, tagger Tagger, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Runner{store: st, tagger: tagger, maxConcurrent: maxConcurrent}
}

// TagPending tags one batch of untagged characters. Only the first batch is
// processed per call; the rest wait for the next run. A failure on one
// character is counted and never stops the others.
func (r *Runner) TagPending(ctx context.Context, batchSize int) (Result, error) {
	log := zap.L().With(zap.String("component", "tagging.runner"))

	pending, err := r.store.CharactersForTagging(ctx, batchSize)
	if err != nil {
		return Result{}, eris.Wrap(err, "tagging: list pending characters")
	}
	res := Result{Queued: len(pending)}
	if len(pending) == 0 {
		log.Info("no characters awaiting tags")
		return res, nil
	}

	var tagged, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)
	for _, c := range pending {
		g.Go(func() error {
			tags, err := r.tagger.Tag(gctx, c.Name, c.Description)
			if err == nil {
				err = r.Apply(gctx, c.ID, tags)
			}
			if err != nil {
				log.Warn("tagging failed", zap.String("character_id", c.ID), zap.Error(err))
				failed.Add(1)
				return nil
			}
			log.Debug("tagged character",
				zap.String("character_id", c.ID),
				zap.Strings("content", tags.Content),
				zap.Strings("personality", tags.Personality),
			)
			tagged.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Tagged = int(tagged.Load())
	res.Failed = int(failed.Load())
	log.Info("tagging run complete",
		zap.Int("queued", res.Queued),
		zap.Int("tagged", res.Tagged),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// Apply stores tags and links them to the character.
func (r *Runner) Apply(ctx context.Context, characterID string, tags *Tags) error {
	contentIDs, err := r.store.UpsertTags(ctx, tags.Content, model.TagTypeContent)
	if err != nil {
		return err
	}
	personalityIDs, err := r.store.UpsertTags(ctx, tags.Personality, model.TagTypePersonality)
	if err != nil {
		return err
	}
	return r.store.TagCharacter(ctx, characterID, append(contentIDs, personalityIDs...))
}

// Preview tags one stored character without persisting the result.
func (r *Runner) Preview(ctx context.Context, characterID string) (*store.TaggingCandidate, *Tags, error) {
	c, err := r.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, nil, err
	}
	if !(model.Character{Name: c.Name, Description: c.Description}).TaggingEligible() {
		return c, nil, ErrIneligible
	}
	tags, err := r.tagger.Tag(ctx, c.Name, c.Description)
	if err != nil {
		return c, nil, err
	}
	return c, tags, nil
}
