// Command stash-setup provisions the datastore and registers users. Run it
// once before starting the pipeline, and again for each additional user.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/stash/internal/config"
	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/internal/storage/postgres"
	"github.com/scrypster/stash/internal/storage/sqlite"
	"github.com/scrypster/stash/pkg/types"
)

func main() {
	name := flag.String("name", "", "display name for the new user")
	id := flag.String("id", "", "user id (default: generated)")
	list := flag.Bool("list", false, "list registered users instead of creating one")
	flag.Parse()

	if err := run(*name, *id, *list); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func run(name, id string, list bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if list {
		users, err := store.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("no users registered")
			return nil
		}
		for _, user := range users {
			fmt.Printf("%s\t%s\t%s\n", user.ID, user.Name, user.CreatedAt.Format(time.RFC3339))
		}
		return nil
	}

	if name == "" {
		return fmt.Errorf("-name is required")
	}
	if id == "" {
		id = uuid.New().String()
	}

	user := &types.User{ID: id, Name: name}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Printf("created user %s (%s)\n", user.ID, user.Name)
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return sqlite.New(cfg.Storage.DataPath)
	default:
		return nil, fmt.Errorf("unknown storage engine: %s", cfg.Storage.Engine)
	}
}
