// Package main provides a tool to seed the database with a demo jam.
//
// It creates a host with a placeholder credential, opens a jam and joins a few users,
// then prints the identifiers to connect with.
//
// Usage:
//
//	DB_PATH=~/.jam/jam.db go run ./cmd/seed
//	DB_PATH=~/.jam/jam.db go run ./cmd/seed --users 5 --max-songs 2
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/service"
	"github.com/jamsync/jam-server/internal/store/sqlite"
	"github.com/jamsync/jam-server/internal/validation"
)

var (
	userCount   = flag.Int("users", 3, "Number of users to join to the jam")
	maxSongs    = flag.Int("max-songs", 3, "Songs each user may add")
	jamName     = flag.String("name", "Demo jam", "Jam name")
	accessToken = flag.String("access-token", os.Getenv("SPOTIFY_ACCESS_TOKEN"), "Host access token for track lookups")
)

var names = []string{"ana", "ben", "chloe", "dev", "emil", "farah", "gus", "hana"}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/.jam/jam.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	slogger := logger.New(logger.Config{Level: logger.ParseLevel("warn")}).Logger

	s, err := sqlite.Open(dbPath, slogger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	jams := service.NewJamService(s, validation.New(), *maxSongs, slogger)

	host, err := jams.CreateHost(ctx)
	if err != nil {
		log.Fatalf("Failed to create host: %v", err)
	}

	token := *accessToken
	if token == "" {
		token = "seed-placeholder"
		fmt.Println("No access token given; AddSong will fail until the host credential is replaced")
	}
	if err := jams.UpdateCredential(ctx, host.ID, service.UpdateCredentialRequest{
		AccessToken: token,
		ExpiresIn:   3600,
	}); err != nil {
		log.Fatalf("Failed to store credential: %v", err)
	}

	jam, err := jams.CreateJam(ctx, service.CreateJamRequest{
		HostID:       host.ID,
		Name:         *jamName,
		MaxSongCount: *maxSongs,
	})
	if err != nil {
		log.Fatalf("Failed to create jam: %v", err)
	}

	fmt.Printf("\nJam %q (%s), %d songs per user\n", jam.Name, jam.ID, jam.MaxSongCount)
	fmt.Printf("  host  %s\n", host.ID)

	for i := range *userCount {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s%d", name, i/len(names)+1)
		}
		user, err := jams.JoinJam(ctx, jam.ID, service.JoinJamRequest{Name: name})
		if err != nil {
			log.Fatalf("Failed to join %s: %v", name, err)
		}
		fmt.Printf("  user  %s (%s)\n", user.ID, user.Name)
	}

	fmt.Printf("\nConnect with: ws://localhost:3000/api/v1/jams/ws/<id>\n")
}
