package feedreader

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// articlesResponse is the body of GET /api/articles.
type articlesResponse struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// Articles fetches one page of the user's feed.
func (c *Client) Articles(ctx context.Context, page, pageSize int) ([]Article, error) {
	var resp articlesResponse
	path := fmt.Sprintf("/api/articles?page=%d&pageSize=%d", page, pageSize)
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Articles, nil
}

// Article fetches a single article by ID.
func (c *Client) Article(ctx context.Context, id int) (*Article, error) {
	var article Article
	if err := c.Get(ctx, fmt.Sprintf("/api/articles/%d", id), &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := c.Get(ctx, "/api/users/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileUpdate carries the fields of an UpdateProfile call; nil fields are
// left unchanged.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

// UpdateProfile changes the current user's username and/or password.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.Put(ctx, "/api/users/me", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListFeeds fetches the catalogue of feeds known to the service.
func (c *Client) ListFeeds(ctx context.Context) ([]Feed, error) {
	var feeds []Feed
	if err := c.Get(ctx, "/api/feeds", &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// Feed fetches a single feed by ID.
func (c *Client) Feed(ctx context.Context, id int) (*Feed, error) {
	var feed Feed
	if err := c.Get(ctx, fmt.Sprintf("/api/feeds/%d", id), &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// feedRequest is the body of feed create and update calls.
type feedRequest struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// CreateFeed registers a new feed with the service.
func (c *Client) CreateFeed(ctx context.Context, name, url string) (*Feed, error) {
	var feed Feed
	if err := c.Post(ctx, "/api/feeds", feedRequest{Name: name, URL: url}, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// UpdateFeed changes a feed's name and/or URL. Empty fields are left
// unchanged.
func (c *Client) UpdateFeed(ctx context.Context, id int, name, url string) (*Feed, error) {
	var feed Feed
	if err := c.Put(ctx, fmt.Sprintf("/api/feeds/%d", id), feedRequest{Name: name, URL: url}, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// DeleteFeed removes a feed from the service.
func (c *Client) DeleteFeed(ctx context.Context, id int) error {
	return c.Delete(ctx, fmt.Sprintf("/api/feeds/%d", id))
}

// Subscriptions fetches the current user's subscriptions.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	if err := c.Get(ctx, "/api/subscriptions", &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Subscribe subscribes the current user to a feed.
func (c *Client) Subscribe(ctx context.Context, feedID int) (*Subscription, error) {
	body := struct {
		FeedID int `json:"feed_id"`
	}{FeedID: feedID}

	var sub Subscription
	if err := c.Post(ctx, "/api/subscriptions", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Unsubscribe removes the current user's subscription to a feed.
func (c *Client) Unsubscribe(ctx context.Context, feedID int) error {
	return c.Delete(ctx, fmt.Sprintf("/api/subscriptions/%d", feedID))
}

// IsSubscribed reports whether the current user is subscribed to a feed.
func (c *Client) IsSubscribed(ctx context.Context, feedID int) (bool, error) {
	var resp struct {
		IsSubscribed bool `json:"is_subscribed"`
	}
	if err := c.Get(ctx, fmt.Sprintf("/api/subscriptions/%d/status", feedID), &resp); err != nil {
		return false, err
	}
	return resp.IsSubscribed, nil
}

// CheckFeedURL fetches and parses the candidate URL as an RSS or Atom feed
// and returns the feed's own title. A bad URL is caught client-side before it
// is submitted to the service.
func CheckFeedURL(ctx context.Context, url string) (string, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return "", fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed.Title, nil
}
