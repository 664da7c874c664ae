package sites

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/character-scraper/internal/model"
)

const (
	chubAPIBase  = "https://gateway.chub.ai"
	chubPageSize = 500
)

// Chub scrapes https://chub.ai/ through its public search gateway. Listing
// pages embed everything a Character needs.
type Chub struct {
	*base
}

// NewChub creates a Chub adapter.
func NewChub(opts Options) (Scraper, error) {
	b, err := newBase("chub", chubAPIBase, opts)
	if err != nil {
		return nil, err
	}
	return &Chub{base: b}, nil
}

// ScrapeSite fetches one search page. Pagination ends on the first page
// that returns fewer nodes than the page size.
func (c *Chub) ScrapeSite(ctx context.Context, siteURL string, cursor *model.Cursor) (*Page, error) {
	page := cursor.Page(1)
	apiURL := fmt.Sprintf("%s/search?page=%d&first=%d&sort=created_at", c.apiBase, page, chubPageSize)

	site, err := url.Parse(siteURL)
	if err != nil {
		return nil, eris.Wrapf(err, "chub: parse site url %q", siteURL)
	}

	doc, err := c.getJSON(ctx, apiURL, c.browserHeaders(map[string]string{
		"accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"cache-control":             "max-age=0",
		"priority":                  "u=0, i",
		"sec-fetch-dest":            "document",
		"sec-fetch-mode":            "navigate",
		"sec-fetch-site":            "none",
		"sec-fetch-user":            "?1",
		"upgrade-insecure-requests": "1",
	}))
	if err != nil {
		return nil, eris.Wrapf(err, "chub: page %d", page)
	}

	nodes := doc.Get("data.nodes").Array()
	characters := make([]model.Character, 0, len(nodes))
	for _, node := range nodes {
		fullPath := node.Get("fullPath").String()
		ref, err := url.Parse(fullPath)
		if err != nil {
			c.skip(fullPath, "unparseable path")
			continue
		}
		pageURL := site.ResolveReference(ref).String()

		avatar := firstPresent(node, "avatar_url", "max_res_url").String()
		if avatar == "" {
			c.skip(pageURL, "no usable image url")
			continue
		}

		// Chub exposes no creator ID; the first path segment is the handle.
		creator := chubCreator(fullPath)
		if creator == "" {
			c.skip(pageURL, "no creator information", zap.String("full_path", fullPath))
			continue
		}

		characters = append(characters, model.Character{
			Name:        cleanName(node.Get("name")),
			Description: cleanText(node.Get("description")),
			URL:         pageURL,
			ImageURL:    avatar,
			LikeCount:   counter(intOrZero(firstPresent(node, "n_favorites", "starCount"))),
			TokenCount:  counter(intOrZero(node.Get("nTokens"))),
			Creator: model.CreatorInput{
				Name:                 creator,
				SiteUniqueIdentifier: creator,
			},
		})
	}

	var next *model.Cursor
	if len(nodes) >= chubPageSize {
		next = model.PageCursor(page + 1)
	}

	c.log.Debug("scraped page",
		zap.Int("page", page),
		zap.Int("nodes", len(nodes)),
		zap.Int("admitted", len(characters)),
		zap.Stringer("next", next),
	)
	return &Page{Characters: characters, Next: next}, nil
}

// chubCreator returns the handle from a "creator/slug" path, or "" when the
// path does not have at least two segments.
func chubCreator(fullPath string) string {
	parts := strings.Split(strings.Trim(fullPath, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}
