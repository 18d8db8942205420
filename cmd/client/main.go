package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cbodonnell/tilesync/client/api"
	"github.com/cbodonnell/tilesync/client/app"
	"github.com/cbodonnell/tilesync/client/auth"
	"github.com/cbodonnell/tilesync/client/network"
	"github.com/cbodonnell/tilesync/client/session"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/log"
	"github.com/cbodonnell/tilesync/pkg/repositories"
	"github.com/cbodonnell/tilesync/pkg/version"
	"github.com/joho/godotenv"
)

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	// a missing .env is fine, the environment and flags still apply
	envErr := godotenv.Load()

	serverURL := flag.String("server-url", envOr("TILESYNC_SERVER_URL", api.DefaultServerURL), "base URL of the game service")
	wsURL := flag.String("ws-url", envOr("TILESYNC_WS_URL", network.DefaultServerURL), "URL of the push channel")
	authURL := flag.String("auth-url", envOr("TILESYNC_AUTH_URL", api.DefaultServerURL), "base URL of the login endpoint")
	dbURL := flag.String("db", envOr("TILESYNC_DATABASE_URL", "sqlite://tilesync.db"), "token storage: memory://, sqlite://<path> or postgresql://...")
	wsImpl := flag.String("ws-impl", envOr("TILESYNC_WS_IMPL", "gorilla"), "websocket implementation: gorilla or nhooyr")
	gameID := flag.String("game", os.Getenv("TILESYNC_GAME_ID"), "game to mount, lists the dashboard when empty")
	playerID := flag.String("player", os.Getenv("TILESYNC_PLAYER_ID"), "player to play as")
	reconnectDelay := flag.Duration("reconnect-delay", envDurationOr("TILESYNC_RECONNECT_DELAY", network.DefaultReconnectDelay), "delay before reopening a dropped push channel")
	maxReconnectAttempts := flag.Int("max-reconnect-attempts", envIntOr("TILESYNC_MAX_RECONNECT_ATTEMPTS", 0), "give up after this many consecutive attempts, 0 retries forever")
	reconnectJitter := flag.Duration("reconnect-jitter", envDurationOr("TILESYNC_RECONNECT_JITTER", 0), "random extra delay added to each reconnection")
	logLevel := flag.String("log-level", envOr("TILESYNC_LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)
	if envErr != nil {
		log.Debug("No .env file loaded: %v", envErr)
	}

	log.Info("Starting client version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository, err := repositories.NewRepositoryFromURL(ctx, *dbURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(ctx)

	token, err := auth.Restore(ctx, repository, repositories.DefaultTokenKey)
	if err != nil {
		panic(fmt.Sprintf("Failed to restore session token: %v", err))
	}
	credentials := auth.NewObserver(token)

	persistence := auth.NewPersistenceWorker(auth.NewPersistenceWorkerOptions{
		Repository: repository,
		Persisted:  token,
	})
	persistence.Attach(credentials)
	go persistence.Start(ctx)
	// Runs before cancel and repository.Close so a logout right before exit is written.
	defer persistence.Flush(ctx)

	httpClient := &http.Client{Timeout: api.DefaultTimeout}
	if credentials.Current() == "" {
		email := os.Getenv("TILESYNC_EMAIL")
		password := os.Getenv("TILESYNC_PASSWORD")
		if email == "" || password == "" {
			panic("No session token stored: TILESYNC_EMAIL and TILESYNC_PASSWORD environment variables must be set")
		}
		if err := credentials.Login(ctx, auth.LoginOptions{
			AuthURL:    *authURL,
			Email:      email,
			Password:   password,
			HTTPClient: httpClient,
		}); err != nil {
			panic(fmt.Sprintf("Failed to login: %v", err))
		}
		log.Info("Logged in as %s", email)
	}

	var dialer network.Dialer
	switch *wsImpl {
	case "gorilla":
		dialer = &network.GorillaDialer{}
	case "nhooyr":
		dialer = &network.NhooyrDialer{HTTPClient: httpClient}
	default:
		panic(fmt.Sprintf("Unknown websocket implementation %s", *wsImpl))
	}

	appCtx := app.NewContext(app.NewContextOptions{
		ServerURL:            *serverURL,
		PushURL:              *wsURL,
		Credentials:          credentials,
		HTTPClient:           httpClient,
		Dialer:               dialer,
		ReconnectDelay:       *reconnectDelay,
		MaxReconnectAttempts: *maxReconnectAttempts,
		ReconnectJitter:      *reconnectJitter,
	})

	if *gameID == "" {
		dashboard, err := appCtx.Dashboard(ctx)
		if err != nil {
			panic(fmt.Sprintf("Failed to load dashboard: %v", err))
		}
		fmt.Printf("games of %s:\n", dashboard.PlayerID)
		for _, g := range dashboard.Games {
			fmt.Printf("  %s  %-20s %s\n", g.ID, g.Name, g.Phase)
		}
		return
	}

	s, err := appCtx.Mount(ctx, app.MountOptions{
		GameID:   types.GameID(*gameID),
		PlayerID: types.PlayerID(*playerID),
		Queued:   true,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to mount game: %v", err))
	}
	defer s.Close()

	s.Model.Subscribe(func(state session.State) {
		fmt.Println(state)
	})
	s.Model.SubscribeErrors(func(err error) {
		fmt.Printf("error: %v\n", err)
	})

	r := &repl{
		model:  s.Model,
		push:   s.Connection,
		logout: credentials.Logout,
		out:    os.Stdout,
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// pushed messages are applied on this goroutine, between input lines
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-interrupt:
			log.Info("Interrupted, closing session")
			return
		case <-ticker.C:
			s.Update()
		case line, ok := <-lines:
			if !ok {
				s.Model.Wait()
				return
			}
			s.Update()
			stop, err := r.exec(line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if stop {
				s.Model.Wait()
				return
			}
		}
	}
}
