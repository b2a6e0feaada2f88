package feedreader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClient_Articles verifies the feed page call and its query parameters.
func TestClient_Articles(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(articlesResponse{
			Articles: genArticles(1, 3),
			Total:    3,
			Page:     2,
			PageSize: 10,
		})
	}))

	articles, err := client.Articles(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Len(t, articles, 3)
	assert.Equal(t, "page=2&pageSize=10", gotQuery)
}

// TestClient_FeedCatalogue verifies the feed CRUD calls against a fake
// service.
func TestClient_FeedCatalogue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/feeds", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Feed{{ID: 1, Name: "Go Blog", URL: "https://go.dev/blog/feed.atom"}})
	})
	mux.HandleFunc("POST /api/feeds", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Feed{ID: 2, Name: req.Name, URL: req.URL})
	})
	mux.HandleFunc("DELETE /api/feeds/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	feeds, err := client.ListFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "Go Blog", feeds[0].Name)

	created, err := client.CreateFeed(ctx, "HN", "https://news.ycombinator.com/rss")
	require.NoError(t, err)
	assert.Equal(t, 2, created.ID)
	assert.Equal(t, "HN", created.Name)

	require.NoError(t, client.DeleteFeed(ctx, 2))
}

// TestClient_Subscriptions verifies subscribe, status, and unsubscribe.
func TestClient_Subscriptions(t *testing.T) {
	subscribed := false
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FeedID int `json:"feed_id"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 7, req.FeedID)
		subscribed = true
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Subscription{ID: 1, UserID: "u1", FeedID: req.FeedID})
	})
	mux.HandleFunc("GET /api/subscriptions/7/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"is_subscribed": subscribed})
	})
	mux.HandleFunc("DELETE /api/subscriptions/7", func(w http.ResponseWriter, r *http.Request) {
		subscribed = false
		w.WriteHeader(http.StatusOK)
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	ok, err := client.IsSubscribed(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	sub, err := client.Subscribe(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, sub.FeedID)

	ok, err = client.IsSubscribed(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.Unsubscribe(ctx, 7))
}

// TestClient_UpdateProfile verifies unset fields are omitted from the
// request body.
func TestClient_UpdateProfile(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(User{ID: "u1", Username: "alice2"})
	}))

	name := "alice2"
	user, err := client.UpdateProfile(context.Background(), ProfileUpdate{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)

	assert.Equal(t, "alice2", gotBody["username"])
	_, hasPassword := gotBody["password"]
	assert.False(t, hasPassword, "unset fields should be omitted")
}

// TestCheckFeedURL verifies a real RSS document parses and a non-feed body is
// rejected.
func TestCheckFeedURL(t *testing.T) {
	const rss = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>http://example.com</link>
    <description>Testing</description>
    <item><title>One</title><link>http://example.com/1</link></item>
  </channel>
</rss>`

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rss))
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not a feed</body></html>"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	title, err := CheckFeedURL(context.Background(), server.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "Example Feed", title)

	_, err = CheckFeedURL(context.Background(), server.URL+"/page.html")
	assert.Error(t, err, "an HTML page is not a feed")
}
