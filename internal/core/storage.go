package core

import (
	"context"
	"fmt"
	"os"

	"neurostore/internal/infra/persistence/memory"
	"neurostore/internal/infra/persistence/mongo"
	"neurostore/internal/infra/persistence/postgres"
	"neurostore/internal/infra/persistence/sqlite"
	"neurostore/pkg/domain"
)

// OpenStore selects a record store implementation using environment
// variables.
//
//	NEUROSTORE_STORAGE_DRIVER: memory|sqlite|postgres|mongo (default sqlite)
//	NEUROSTORE_SQLITE_PATH: database file when driver=sqlite (default ./neurostore.db)
//	NEUROSTORE_POSTGRES_DSN: connection string when driver=postgres
//	NEUROSTORE_MONGO_URI: connection string when driver=mongo
//	NEUROSTORE_MONGO_DATABASE: database name when driver=mongo (default neurostore)
func OpenStore(ctx context.Context) (domain.Store, error) {
	driver := os.Getenv("NEUROSTORE_STORAGE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	switch driver {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite":
		path := os.Getenv("NEUROSTORE_SQLITE_PATH")
		if path == "" {
			path = "neurostore.db"
		}
		return sqlite.NewStore(path)
	case "postgres":
		return postgres.NewStore(os.Getenv("NEUROSTORE_POSTGRES_DSN"))
	case "mongo":
		return mongo.NewStore(ctx, os.Getenv("NEUROSTORE_MONGO_URI"), os.Getenv("NEUROSTORE_MONGO_DATABASE"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
