package model

import (
	"strconv"
)

// Cursor is an opaque pagination token. Every current site paginates by a
// 1-based page number, but a site may hand out a string token instead.
// A nil *Cursor means there are no further pages.
type Cursor struct {
	page  int
	token string
}

// PageCursor returns a cursor pointing at the given 1-based page.
func PageCursor(page int) *Cursor {
	return &Cursor{page: page}
}

// TokenCursor returns a cursor wrapping a site-issued continuation token.
func TokenCursor(token string) *Cursor {
	return &Cursor{token: token}
}

// Page returns the page number carried by c, or def when c is nil or holds
// a string token.
func (c *Cursor) Page(def int) int {
	if c == nil || c.page <= 0 {
		return def
	}
	return c.page
}

// Token returns the string token carried by c, if any.
func (c *Cursor) Token() string {
	if c == nil {
		return ""
	}
	return c.token
}

// String renders the cursor for logs.
func (c *Cursor) String() string {
	switch {
	case c == nil:
		return "<end>"
	case c.token != "":
		return c.token
	default:
		return strconv.Itoa(c.page)
	}
}
