package feedreader

import (
	"context"
	"sync"
)

// DefaultPageSize matches the web front end's feed page size.
const DefaultPageSize = 10

// FeedLoader accumulates the user's article feed one page at a time. Page 1
// replaces the accumulator; later pages append in call order. Exhaustion is
// inferred from a short page -- the loader never trusts the server-reported
// total.
//
// All loads pass through a single in-flight slot, so pages cannot be issued
// concurrently and the append order always matches the issue order.
type FeedLoader struct {
	client   *Client
	creds    TokenStore
	pageSize int

	mu       sync.Mutex
	loading  bool
	page     int
	hasMore  bool
	articles []Article
	lastErr  string
}

// NewFeedLoader creates a loader reading through the given client. A
// non-positive pageSize selects DefaultPageSize. The credential store is
// consulted to discard responses that arrive after the session they belong to
// has been invalidated.
func NewFeedLoader(client *Client, creds TokenStore, pageSize int) *FeedLoader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &FeedLoader{
		client:   client,
		creds:    creds,
		pageSize: pageSize,
		page:     1,
		hasMore:  true,
	}
}

// Load fetches one page of articles. Page 1 replaces the accumulated items;
// any other page appends them. On failure the accumulator is untouched and
// the failure message is retained for display. A Load while another load is
// in flight is a no-op.
func (l *FeedLoader) Load(ctx context.Context, page int) error {
	if !l.claim() {
		return nil
	}
	return l.load(ctx, page)
}

// LoadMore advances to the next page. It is a no-op when a load is already in
// flight or the feed is exhausted, which absorbs rapid repeated triggers.
func (l *FeedLoader) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	next := l.page + 1
	l.mu.Unlock()

	return l.load(ctx, next)
}

// Refresh resets the cursor to page 1 and reloads. The old items stay visible
// until the new first page arrives: page 1 replaces on arrival rather than
// clearing eagerly. A Refresh while a load is in flight is a no-op.
func (l *FeedLoader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	l.page = 1
	l.hasMore = true
	l.mu.Unlock()

	return l.load(ctx, 1)
}

// Articles returns a copy of the accumulated feed in arrival order.
func (l *FeedLoader) Articles() []Article {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Article, len(l.articles))
	copy(out, l.articles)
	return out
}

// HasMore reports whether the last fetched page was full, i.e. whether
// another page may exist.
func (l *FeedLoader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Page returns the page number of the most recently applied load.
func (l *FeedLoader) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// Loading reports whether a load is in flight.
func (l *FeedLoader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Err returns the message of the most recent failed load, cleared by the next
// successful one.
func (l *FeedLoader) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// claim takes the in-flight slot, reporting false if it is already held.
func (l *FeedLoader) claim() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loading {
		return false
	}
	l.loading = true
	return true
}

// load performs the fetch; the caller has already claimed the in-flight slot.
func (l *FeedLoader) load(ctx context.Context, page int) error {
	defer func() {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
	}()

	issued, _ := l.creds.Get()

	articles, err := l.client.Articles(ctx, page, l.pageSize)
	if err != nil {
		l.mu.Lock()
		l.lastErr = messageOf(err, "Failed to load articles")
		l.mu.Unlock()
		return err
	}

	// A response that raced with session invalidation or a re-login belongs
	// to a session that no longer exists; drop it instead of applying it.
	if current, _ := l.creds.Get(); current != issued {
		return nil
	}

	l.mu.Lock()
	if page == 1 {
		l.articles = articles
	} else {
		l.articles = append(l.articles, articles...)
	}
	l.page = page
	l.hasMore = len(articles) == l.pageSize
	l.lastErr = ""
	l.mu.Unlock()

	return nil
}
