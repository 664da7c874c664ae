package sites

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/character-scraper/internal/model"
)

const (
	janitorAPIBase  = "https://janitorai.com"
	janitorSiteBase = "https://janitorai.com"
)

// Janitor scrapes https://janitorai.com/ through its character listing
// endpoint. Listing pages embed everything a Character needs.
type Janitor struct {
	*base
}

// NewJanitor creates a Janitor adapter.
func NewJanitor(opts Options) (Scraper, error) {
	b, err := newBase("janitor", janitorAPIBase, opts)
	if err != nil {
		return nil, err
	}
	return &Janitor{base: b}, nil
}

// ScrapeSite fetches one listing page. Pagination ends on the first empty page.
func (j *Janitor) ScrapeSite(ctx context.Context, _ string, cursor *model.Cursor) (*Page, error) {
	page := cursor.Page(1)
	apiURL := fmt.Sprintf("%s/hampter/characters?page=%d&mode=all&sort=latest", j.apiBase, page)

	doc, err := j.getJSON(ctx, apiURL, j.browserHeaders(map[string]string{
		"accept":         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"cache-control":  "no-cache",
		"pragma":         "no-cache",
		"priority":       "u=1, i",
		"referer":        janitorSiteBase + "/hampter/characters?mode=all&sort=latest",
		"sec-fetch-dest": "empty",
		"sec-fetch-mode": "cors",
		"sec-fetch-site": "same-origin",
	}))
	if err != nil {
		return nil, eris.Wrapf(err, "janitor: page %d", page)
	}

	items := doc.Get("data").Array()
	characters := make([]model.Character, 0, len(items))
	for _, item := range items {
		id := idString(item.Get("id"))
		if id == "" {
			j.skip(apiURL, "no character id")
			continue
		}
		pageURL := janitorSiteBase + "/characters/" + id

		avatar := item.Get("avatar").String()
		if avatar == "" {
			j.skip(pageURL, "no usable image url")
			continue
		}

		creatorName := cleanName(item.Get("creator_name"))
		creatorID := idString(item.Get("creator_id"))
		if creatorName == "" || creatorID == "" {
			j.skip(pageURL, "no creator information",
				zap.String("creator_name", creatorName),
				zap.String("creator_id", creatorID),
			)
			continue
		}

		characters = append(characters, model.Character{
			Name:         cleanName(item.Get("name")),
			Description:  cleanText(item.Get("description")),
			URL:          pageURL,
			ImageURL:     janitorSiteBase + "/avatars/" + avatar,
			ChatCount:    counter(intOrZero(item.Get("stats.chat"))),
			MessageCount: counter(intOrZero(item.Get("stats.message"))),
			TokenCount:   counter(intOrZero(item.Get("total_tokens"))),
			Creator: model.CreatorInput{
				Name:                 creatorName,
				SiteUniqueIdentifier: creatorID,
			},
		})
	}

	var next *model.Cursor
	if len(items) > 0 {
		next = model.PageCursor(page + 1)
	}

	j.log.Debug("scraped page",
		zap.Int("page", page),
		zap.Int("items", len(items)),
		zap.Int("admitted", len(characters)),
		zap.Stringer("next", next),
	)
	return &Page{Characters: characters, Next: next}, nil
}
