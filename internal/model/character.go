package model

// CreatorInput is the author of a character profile as reported by one site.
// Storage identity (id, site_id) is assigned during upsert.
type CreatorInput struct {
	// Name is the display handle, without any leading "@".
	Name string `json:"name" yaml:"name"`
	// SiteUniqueIdentifier identifies the creator within one site. Sites
	// without a stable ID use the handle.
	SiteUniqueIdentifier string   `json:"site_unique_identifier" yaml:"site_unique_identifier"`
	ImageURL             *string  `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	URLs                 []string `json:"urls" yaml:"urls"`
	FollowerCount        *int64   `json:"follower_count,omitempty" yaml:"follower_count,omitempty"`
}

// Clone returns a deep copy so merges never alias the scraped value.
func (c CreatorInput) Clone() CreatorInput {
	out := c
	if c.ImageURL != nil {
		v := *c.ImageURL
		out.ImageURL = &v
	}
	if c.FollowerCount != nil {
		v := *c.FollowerCount
		out.FollowerCount = &v
	}
	out.URLs = append([]string(nil), c.URLs...)
	return out
}

// Character is one scraped character profile in canonical form.
type Character struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	// URL is the system-wide identity key; a re-scrape of the same URL
	// replaces the previous revision.
	URL      string `json:"url" yaml:"url"`
	ImageURL string `json:"image_url" yaml:"image_url"`

	ChatCount    *int64 `json:"chat_count,omitempty" yaml:"chat_count,omitempty"`
	MessageCount *int64 `json:"message_count,omitempty" yaml:"message_count,omitempty"`
	LikeCount    *int64 `json:"like_count,omitempty" yaml:"like_count,omitempty"`
	TokenCount   *int64 `json:"token_count,omitempty" yaml:"token_count,omitempty"`

	Creator CreatorInput `json:"creator" yaml:"creator"`
}

// TaggingEligible reports whether the character carries enough text to tag.
func (c Character) TaggingEligible() bool {
	return c.Name != "" && c.Description != ""
}

// Site is a scrape target registered in storage.
type Site struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	IsEnabled bool   `json:"is_enabled"`
}

// TagType distinguishes the tag vocabularies produced by tagging.
type TagType int

const (
	TagTypeContent TagType = iota + 1
	TagTypePersonality
)

// String returns the human-readable tag type.
func (t TagType) String() string {
	switch t {
	case TagTypeContent:
		return "content"
	case TagTypePersonality:
		return "personality"
	default:
		return "unknown"
	}
}

// Int64 returns a pointer to v. Adapters use it for optional counters.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
