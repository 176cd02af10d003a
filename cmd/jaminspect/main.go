// Package main prints the state of one jam: its host, users and the ranked queue.
//
// Usage:
//
//	DB_PATH=~/.jam/jam.db go run ./cmd/jaminspect ABC123
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jamsync/jam-server/internal/id"
	"github.com/jamsync/jam-server/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: jaminspect <jam code>")
	}
	jamID := strings.ToUpper(os.Args[1])
	if !id.IsJoinCode(jamID) {
		log.Fatalf("%q is not a jam code", os.Args[1])
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/.jam/jam.db")
	}

	s, err := sqlite.Open(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	jam, err := s.GetJam(ctx, jamID)
	if err != nil {
		log.Fatalf("Failed to load jam: %v", err)
	}

	fmt.Println("=== Jam Inspection ===")
	fmt.Println()
	fmt.Printf("Jam:        %s (%s)\n", jam.Name, jam.ID)
	fmt.Printf("Created:    %s\n", jam.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Song quota: %d per user\n", jam.MaxSongCount)

	host, err := s.GetHost(ctx, jam.HostID)
	if err != nil {
		log.Fatalf("Failed to load host: %v", err)
	}
	fmt.Printf("Host:       %s\n", host.ID)
	switch {
	case host.Credential == nil:
		fmt.Println("Credential: none")
	case host.Credential.ExpiresWithin(time.Now(), 0):
		fmt.Printf("Credential: expired at %s\n", host.Credential.ExpiresAt.Format(time.RFC3339))
	default:
		fmt.Printf("Credential: valid until %s\n", host.Credential.ExpiresAt.Format(time.RFC3339))
	}

	users, err := s.ListUsers(ctx, jamID)
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}
	owner := make(map[string]string, len(users))

	fmt.Println()
	fmt.Printf("=== Users (%d) ===\n", len(users))
	for _, u := range users {
		owner[u.ID] = u.Name
		n, err := s.CountSongsByUser(ctx, u.ID)
		if err != nil {
			log.Fatalf("Failed to count songs for %s: %v", u.ID, err)
		}
		fmt.Printf("  %-24s %-16s %d/%d songs\n", u.ID, u.Name, n, jam.MaxSongCount)
	}

	ranked, err := s.RankSongs(ctx, jamID)
	if err != nil {
		log.Fatalf("Failed to rank songs: %v", err)
	}

	fmt.Println()
	fmt.Printf("=== Queue (%d) ===\n", len(ranked))
	for i, song := range ranked {
		fmt.Printf("  %2d. %3d votes  %s - %s  [%s] added by %s\n",
			i+1, song.Votes, strings.Join(song.Artists, ", "), song.Name, song.ID, owner[song.UserID])
	}
}
