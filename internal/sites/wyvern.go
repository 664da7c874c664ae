package sites

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/character-scraper/internal/model"
)

const (
	wyvernAPIBase  = "https://api.wyvern.chat"
	wyvernSiteBase = "https://wyvern.chat"
	wyvernPageSize = 100
)

// Wyvern scrapes https://wyvern.chat/ through its explore search.
type Wyvern struct {
	*base
}

// NewWyvern creates a Wyvern adapter.
func NewWyvern(opts Options) (Scraper, error) {
	b, err := newBase("wyvern", wyvernAPIBase, opts)
	if err != nil {
		return nil, err
	}
	return &Wyvern{base: b}, nil
}

// ScrapeSite fetches one explore page. Pagination ends when the server
// stops reporting hasMore.
func (w *Wyvern) ScrapeSite(ctx context.Context, _ string, cursor *model.Cursor) (*Page, error) {
	page := cursor.Page(1)
	apiURL := fmt.Sprintf("%s/exploreSearch/characters?page=%d&limit=%d&sort=created_at&order=DESC", w.apiBase, page, wyvernPageSize)

	doc, err := w.getJSON(ctx, apiURL, w.browserHeaders(map[string]string{
		"accept":         "application/json, text/plain, */*",
		"cache-control":  "no-cache",
		"pragma":         "no-cache",
		"priority":       "u=1, i",
		"referer":        wyvernSiteBase + "/explore",
		"sec-fetch-dest": "empty",
		"sec-fetch-mode": "cors",
		"sec-fetch-site": "same-origin",
	}))
	if err != nil {
		return nil, eris.Wrapf(err, "wyvern: page %d", page)
	}

	items := doc.Get("results").Array()
	characters := make([]model.Character, 0, len(items))
	for _, item := range items {
		id := idString(item.Get("id"))
		if id == "" {
			w.skip(apiURL, "no character id")
			continue
		}
		pageURL := wyvernSiteBase + "/characters/" + id

		avatar := item.Get("avatar").String()
		if avatar == "" {
			w.skip(pageURL, "no usable image url")
			continue
		}

		creator := item.Get("creator")
		creatorName := cleanName(firstPresent(creator, "displayName", "vanityUrl"))
		creatorID := idString(creator.Get("uid"))
		if creatorName == "" || creatorID == "" {
			w.skip(pageURL, "no creator information",
				zap.String("creator_name", creatorName),
				zap.String("creator_id", creatorID),
			)
			continue
		}

		stats := item.Get("entity_statistics")
		characters = append(characters, model.Character{
			Name:         cleanName(item.Get("name")),
			Description:  cleanText(item.Get("tagline")),
			URL:          pageURL,
			ImageURL:     avatar,
			MessageCount: counter(intOrZero(stats.Get("total_messages"))),
			LikeCount:    counter(intOrZero(stats.Get("total_likes"))),
			Creator: model.CreatorInput{
				Name:                 creatorName,
				SiteUniqueIdentifier: creatorID,
				ImageURL:             model.String(creator.Get("photoURL").String()),
			},
		})
	}

	var next *model.Cursor
	if doc.Get("hasMore").Bool() {
		next = model.PageCursor(page + 1)
	}

	w.log.Debug("scraped page",
		zap.Int("page", page),
		zap.Int("items", len(items)),
		zap.Int("admitted", len(characters)),
		zap.Stringer("next", next),
	)
	return &Page{Characters: characters, Next: next}, nil
}
