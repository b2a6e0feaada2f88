package feedreader

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// User is the profile record returned by GET /api/users/me.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Feed is one content source known to the service.
type Feed struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	LastFetchedAt *time.Time `json:"lastFetchedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Subscription links the current user to a feed.
type Subscription struct {
	ID        int       `json:"id"`
	UserID    string    `json:"userId"`
	FeedID    int       `json:"feedId"`
	CreatedAt time.Time `json:"createdAt"`
	Feed      *Feed     `json:"feed,omitempty"`
}

// Article is one item from the user's feed. Articles are immutable on the
// client: the loader only appends them or replaces the whole collection.
type Article struct {
	ID          int        `json:"id"`
	FeedID      int        `json:"feedId"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description *string    `json:"description"`
	PubDate     *time.Time `json:"pubDate"`
	GUID        *string    `json:"guid,omitempty"`
	FeedName    string     `json:"feedName,omitempty"`
	Feed        *Feed      `json:"feed,omitempty"`
}

// SourceName returns the label of the feed this article came from.
func (a *Article) SourceName() string {
	if a.FeedName != "" {
		return a.FeedName
	}
	if a.Feed != nil && a.Feed.Name != "" {
		return a.Feed.Name
	}
	return "News"
}

// PlainDescription returns the article description with any markup stripped,
// suitable for terminal display. The service stores descriptions as rendered
// HTML fragments.
func (a *Article) PlainDescription() string {
	if a.Description == nil || *a.Description == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(*a.Description))
	if err != nil {
		// Not parseable as HTML -- show it as-is.
		return strings.TrimSpace(*a.Description)
	}

	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
