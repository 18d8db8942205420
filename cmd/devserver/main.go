package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbodonnell/tilesync/pkg/devserver"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/log"
	"github.com/cbodonnell/tilesync/pkg/version"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	port := flag.Int("port", 8080, "port to listen on")
	authProviderName := flag.String("auth", "static", "auth provider: static or firebase")
	players := flag.String("players", "alice,bob,carol,dave", "comma-separated players of the demo game, who log in as <name>@example.com")
	password := flag.String("password", "password", "password of the demo players")
	compress := flag.Bool("compress", false, "push zstd-compressed binary frames")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "seed of the tile shuffle")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)
	if envErr != nil {
		log.Debug("No .env file loaded: %v", envErr)
	}

	log.Info("Starting dev server version %s", version.Get())
	ctx := context.Background()

	seats := []types.PlayerSummary{}
	for _, name := range strings.Split(*players, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		seats = append(seats, types.PlayerSummary{ID: types.PlayerID(name), Name: name})
	}
	if len(seats) < 2 {
		panic("At least two players are required")
	}

	var authProvider devserver.AuthProvider
	switch *authProviderName {
	case "static":
		provider := devserver.NewStaticAuthProvider()
		for _, seat := range seats {
			provider.AddUser(string(seat.ID)+"@example.com", *password, string(seat.ID))
		}
		authProvider = provider
	case "firebase":
		firebaseProjectID := os.Getenv("TILESYNC_FIREBASE_PROJECT_ID")
		if firebaseProjectID == "" {
			panic("TILESYNC_FIREBASE_PROJECT_ID environment variable must be set")
		}
		firebaseAPIKey := os.Getenv("TILESYNC_FIREBASE_API_KEY")
		if firebaseAPIKey == "" {
			panic("TILESYNC_FIREBASE_API_KEY environment variable must be set")
		}
		authProvider, err = devserver.NewFirebaseAuthProvider(ctx, devserver.NewFirebaseAuthProviderOptions{
			ProjectID: firebaseProjectID,
			APIKey:    firebaseAPIKey,
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to create Firebase auth provider: %v", err))
		}
	default:
		panic(fmt.Sprintf("Unknown auth provider %s", *authProviderName))
	}

	store := devserver.NewStore(types.NewStandardDeck(), *seed)
	demo := store.CreateGame("demo", "Demo table", seats)
	log.Info("Created game %s with %d players", demo.ID, len(demo.Players))

	serverOpts := devserver.NewServerOptions{
		Port:           *port,
		AuthProvider:   authProvider,
		Store:          store,
		CompressFrames: *compress,
	}
	tlsCertFile := os.Getenv("TILESYNC_TLS_CERT_FILE")
	tlsKeyFile := os.Getenv("TILESYNC_TLS_KEY_FILE")
	if tlsCertFile != "" && tlsKeyFile != "" {
		serverOpts.TLS = &devserver.TLSConfig{
			CertFile: tlsCertFile,
			KeyFile:  tlsKeyFile,
		}
	}
	server := devserver.NewServer(serverOpts)
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}
