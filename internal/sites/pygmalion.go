package sites

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/character-scraper/internal/model"
)

const (
	pygmalionAPIBase  = "https://server.pygmalion.chat"
	pygmalionSiteBase = "https://pygmalion.chat"
	pygmalionPageSize = 100
)

// Pygmalion scrapes https://pygmalion.chat/ through its Connect RPC
// character search.
type Pygmalion struct {
	*base
}

// NewPygmalion creates a Pygmalion adapter.
func NewPygmalion(opts Options) (Scraper, error) {
	b, err := newBase("pygmalion", pygmalionAPIBase, opts)
	if err != nil {
		return nil, err
	}
	return &Pygmalion{base: b}, nil
}

type pygmalionSearchRequest struct {
	Page             int    `json:"page"`
	OrderBy          string `json:"orderBy"`
	OrderDescending  bool   `json:"orderDescending"`
	IncludeSensitive bool   `json:"includeSensitive"`
	PageSize         int    `json:"pageSize"`
}

// ScrapeSite fetches one search page. Pagination ends once
// page*pageSize reaches the server-reported totalItems.
func (p *Pygmalion) ScrapeSite(ctx context.Context, _ string, cursor *model.Cursor) (*Page, error) {
	page := cursor.Page(1)
	apiURL := p.apiBase + "/galatea.v1.PublicCharacterService/CharacterSearch"

	doc, err := p.postJSON(ctx, apiURL, p.browserHeaders(map[string]string{
		"accept":  "application/json, text/plain, */*",
		"referer": pygmalionSiteBase + "/explore",
	}), pygmalionSearchRequest{
		Page:            page,
		OrderBy:         "approved_at",
		OrderDescending: true,
		PageSize:        pygmalionPageSize,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pygmalion: page %d", page)
	}

	items := doc.Get("characters").Array()
	characters := make([]model.Character, 0, len(items))
	for _, item := range items {
		id := idString(item.Get("id"))
		if id == "" {
			p.skip(apiURL, "no character id")
			continue
		}
		pageURL := pygmalionSiteBase + "/character/" + id

		avatar := item.Get("avatarUrl").String()
		if avatar == "" {
			p.skip(pageURL, "no usable image url")
			continue
		}

		owner := item.Get("owner")
		ownerName := cleanName(owner.Get("displayName"))
		ownerID := idString(owner.Get("id"))
		if ownerName == "" || ownerID == "" {
			p.skip(pageURL, "no owner information",
				zap.String("owner_display_name", ownerName),
				zap.String("owner_id", ownerID),
			)
			continue
		}

		characters = append(characters, model.Character{
			Name:        cleanName(item.Get("displayName")),
			Description: cleanText(item.Get("description")),
			URL:         pageURL,
			ImageURL:    avatar,
			ChatCount:   counter(intOrZero(item.Get("chatCount"))),
			LikeCount:   counter(intOrDigitsOrZero(firstPresent(item, "stars", "starCount", "favorites"))),
			Creator: model.CreatorInput{
				Name:                 ownerName,
				SiteUniqueIdentifier: ownerID,
				ImageURL:             model.String(owner.Get("avatarUrl").String()),
			},
		})
	}

	// Connect serializes int64 as a JSON string; gjson parses either form.
	total := doc.Get("totalItems").Int()
	var next *model.Cursor
	if int64(page)*pygmalionPageSize < total {
		next = model.PageCursor(page + 1)
	}

	p.log.Debug("scraped page",
		zap.Int("page", page),
		zap.Int("items", len(items)),
		zap.Int("admitted", len(characters)),
		zap.Int64("total_items", total),
		zap.Stringer("next", next),
	)
	return &Page{Characters: characters, Next: next}, nil
}
