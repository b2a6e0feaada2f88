package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/term"

	"github.com/farrelio/feedreader"
	"github.com/farrelio/feedreader/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	if subcommand == "help" || subcommand == "--help" || subcommand == "-h" {
		printUsage()
		return
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	ctx := context.Background()
	app.session.Restore(ctx)

	switch subcommand {
	case "login":
		app.handleLogin(ctx, os.Args[2:])
	case "register":
		app.handleRegister(ctx, os.Args[2:])
	case "logout":
		app.handleLogout()
	case "whoami":
		app.handleWhoami()
	case "articles":
		app.handleArticles(ctx, os.Args[2:])
	case "feeds":
		app.handleFeeds(ctx, os.Args[2:])
	case "subs":
		app.handleSubs(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

// app wires the client stack together for one invocation.
type app struct {
	cfg     *config.Config
	creds   *feedreader.CredentialStore
	client  *feedreader.Client
	session *feedreader.SessionManager
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CredentialsDSN), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	creds, err := feedreader.NewCredentialStore(cfg.CredentialsDSN)
	if err != nil {
		return nil, err
	}

	client := feedreader.NewClient(cfg.ServerURL, creds, cfg.Timeout())
	if id, err := creds.ClientID(); err == nil {
		client.SetClientID(id)
	}

	session := feedreader.NewSessionManager(client, creds, feedreader.NopNavigator{})

	return &app{cfg: cfg, creds: creds, client: client, session: session}, nil
}

func (a *app) close() {
	a.creds.Close()
}

// requireAuth exits unless the restored session is authenticated.
func (a *app) requireAuth() {
	if !a.session.Current().Authenticated() {
		fmt.Fprintln(os.Stderr, "Error: not logged in. Run 'feedreader login' first.")
		os.Exit(1)
	}
}

func (a *app) handleLogin(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "Account username")
	fs.Parse(args)

	name, password := promptCredentials(*username)
	if err := a.session.Login(ctx, name, password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", sessionError(a.session, err))
		os.Exit(1)
	}

	user := a.session.Current().User
	fmt.Printf("Logged in as %s\n", user.Username)
}

func (a *app) handleRegister(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "Account username")
	fs.Parse(args)

	name, password := promptCredentials(*username)
	if err := a.session.Register(ctx, name, password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", sessionError(a.session, err))
		os.Exit(1)
	}

	user := a.session.Current().User
	fmt.Printf("Registered and logged in as %s\n", user.Username)
}

func (a *app) handleLogout() {
	if err := a.session.Logout(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to log out: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Logged out.")
}

func (a *app) handleWhoami() {
	session := a.session.Current()
	if !session.Authenticated() {
		fmt.Println("Not logged in.")
		return
	}
	fmt.Printf("%s (id %s)\n", session.User.Username, session.User.ID)
	fmt.Printf("Member since %s\n", session.User.CreatedAt.Format("2006-01-02"))
}

func (a *app) handleArticles(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("articles", flag.ExitOnError)
	pages := fs.Int("pages", 1, "Number of pages to fetch")
	limit := fs.Int("limit", a.cfg.PageSize, "Articles per page")
	format := fs.String("format", "table", "Output format: table, json, compact")
	fs.Parse(args)

	a.requireAuth()

	loader := feedreader.NewFeedLoader(a.client, a.creds, *limit)
	if err := loader.Load(ctx, 1); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", loader.Err())
		os.Exit(1)
	}
	for p := 2; p <= *pages && loader.HasMore(); p++ {
		if err := loader.LoadMore(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", loader.Err())
			break
		}
	}

	articles := loader.Articles()
	if len(articles) == 0 {
		fmt.Println("No articles in your feed. Subscribe to some feeds first.")
		return
	}

	switch *format {
	case "json":
		printJSON(articles)
	case "compact":
		for _, article := range articles {
			fmt.Printf("%6d  %-20s  %s\n", article.ID, truncate(article.SourceName(), 20), article.Title)
		}
	case "table":
		for i, article := range articles {
			fmt.Printf("%d. %s\n", i+1, article.Title)
			fmt.Printf("   Source: %s\n", article.SourceName())
			if article.PubDate != nil {
				fmt.Printf("   Published: %s\n", article.PubDate.Format("2006-01-02"))
			}
			if desc := article.PlainDescription(); desc != "" {
				fmt.Printf("   %s\n", truncate(desc, 120))
			}
			fmt.Printf("   %s\n\n", article.Link)
		}
		if loader.HasMore() {
			fmt.Println("(more articles available -- increase -pages)")
		} else {
			fmt.Println("(end of feed)")
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid format: %s (must be table, json, or compact)\n", *format)
		os.Exit(1)
	}
}

func (a *app) handleFeeds(ctx context.Context, args []string) {
	if len(args) < 1 {
		printFeedsUsage()
		os.Exit(1)
	}

	a.requireAuth()

	switch args[0] {
	case "list":
		feeds, err := a.client.ListFeeds(ctx)
		exitOnError(err)
		if len(feeds) == 0 {
			fmt.Println("No feeds available.")
			return
		}
		fmt.Printf("%-6s %-30s %s\n", "ID", "NAME", "URL")
		for _, feed := range feeds {
			fmt.Printf("%-6d %-30s %s\n", feed.ID, truncate(feed.Name, 30), feed.URL)
		}
	case "add":
		fs := flag.NewFlagSet("feeds add", flag.ExitOnError)
		name := fs.String("name", "", "Feed name (defaults to the feed's own title)")
		url := fs.String("url", "", "Feed URL (required)")
		skipCheck := fs.Bool("skip-check", false, "Skip fetching the URL to validate it")
		fs.Parse(args[1:])
		if *url == "" {
			fmt.Fprintln(os.Stderr, "Error: -url is required")
			os.Exit(1)
		}

		feedName := *name
		if !*skipCheck {
			title, err := feedreader.CheckFeedURL(ctx, *url)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s does not look like a feed: %v\n", *url, err)
				os.Exit(1)
			}
			if feedName == "" {
				feedName = title
			}
		}
		if feedName == "" {
			fmt.Fprintln(os.Stderr, "Error: -name is required with -skip-check")
			os.Exit(1)
		}

		feed, err := a.client.CreateFeed(ctx, feedName, *url)
		exitOnError(err)
		fmt.Printf("Added feed %d: %s\n", feed.ID, feed.Name)
	case "update":
		fs := flag.NewFlagSet("feeds update", flag.ExitOnError)
		name := fs.String("name", "", "New feed name")
		url := fs.String("url", "", "New feed URL")
		fs.Parse(args[1:])
		id := parseIDArg(fs.Args(), "feed")

		feed, err := a.client.UpdateFeed(ctx, id, *name, *url)
		exitOnError(err)
		fmt.Printf("Updated feed %d: %s\n", feed.ID, feed.Name)
	case "delete":
		id := parseIDArg(args[1:], "feed")
		exitOnError(a.client.DeleteFeed(ctx, id))
		fmt.Printf("Deleted feed %d\n", id)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown feeds command: %s\n\n", args[0])
		printFeedsUsage()
		os.Exit(1)
	}
}

func (a *app) handleSubs(ctx context.Context, args []string) {
	if len(args) < 1 {
		printSubsUsage()
		os.Exit(1)
	}

	a.requireAuth()

	switch args[0] {
	case "list":
		subs, err := a.client.Subscriptions(ctx)
		exitOnError(err)
		if len(subs) == 0 {
			fmt.Println("No subscriptions.")
			return
		}
		for _, sub := range subs {
			name := strconv.Itoa(sub.FeedID)
			if sub.Feed != nil {
				name = sub.Feed.Name
			}
			fmt.Printf("%-6d %s\n", sub.FeedID, name)
		}
	case "add":
		id := parseIDArg(args[1:], "feed")
		_, err := a.client.Subscribe(ctx, id)
		exitOnError(err)
		fmt.Printf("Subscribed to feed %d\n", id)
	case "rm":
		id := parseIDArg(args[1:], "feed")
		exitOnError(a.client.Unsubscribe(ctx, id))
		fmt.Printf("Unsubscribed from feed %d\n", id)
	case "status":
		id := parseIDArg(args[1:], "feed")
		subscribed, err := a.client.IsSubscribed(ctx, id)
		exitOnError(err)
		if subscribed {
			fmt.Printf("Subscribed to feed %d\n", id)
		} else {
			fmt.Printf("Not subscribed to feed %d\n", id)
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown subs command: %s\n\n", args[0])
		printSubsUsage()
		os.Exit(1)
	}
}

// promptCredentials collects the username (when not given as a flag) and
// password from the terminal. The password is read without echo.
func promptCredentials(username string) (string, string) {
	if username == "" {
		fmt.Print("Username: ")
		fmt.Scanln(&username)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read password: %v\n", err)
		os.Exit(1)
	}

	return username, string(passwordBytes)
}

// sessionError prefers the session's display message over the raw error.
func sessionError(session *feedreader.SessionManager, err error) string {
	if msg := session.Current().Err; msg != "" {
		return msg
	}
	return err.Error()
}

func parseIDArg(args []string, kind string) int {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: %s ID is required\n", kind)
		os.Exit(1)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid %s ID: %s\n", kind, args[0])
		os.Exit(1)
	}
	return id
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printUsage() {
	fmt.Println("feedreader - Terminal client for the FeedReader service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  feedreader <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login      Log in to the service")
	fmt.Println("  register   Create an account and log in")
	fmt.Println("  logout     Discard the stored session")
	fmt.Println("  whoami     Show the current user")
	fmt.Println("  articles   Browse your article feed")
	fmt.Println("  feeds      Manage the feed catalogue")
	fmt.Println("  subs       Manage your subscriptions")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  FEEDREADER_SERVER_URL       Base URL of the service (default: http://localhost:8080)")
	fmt.Println("  FEEDREADER_PAGE_SIZE        Articles per page (default: 10)")
	fmt.Println("  FEEDREADER_TIMEOUT_SECONDS  Request timeout (default: 15)")
	fmt.Println("  FEEDREADER_CREDENTIALS_DSN  Path to the credential database")
}

func printFeedsUsage() {
	fmt.Println("feedreader feeds - Manage the feed catalogue")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  feedreader feeds list")
	fmt.Println("  feedreader feeds add -url <url> [-name <name>] [-skip-check]")
	fmt.Println("  feedreader feeds update [-name <name>] [-url <url>] <feed-id>")
	fmt.Println("  feedreader feeds delete <feed-id>")
}

func printSubsUsage() {
	fmt.Println("feedreader subs - Manage your subscriptions")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  feedreader subs list")
	fmt.Println("  feedreader subs add <feed-id>")
	fmt.Println("  feedreader subs rm <feed-id>")
	fmt.Println("  feedreader subs status <feed-id>")
}
