package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// stores bundles the storage backends a command runs against, plus a
// cleanup for whatever connections were opened.
type stores struct {
	records    database.Store
	identities identity.Store
	close      func()
}

// openStores wires the storage layer. With DATABASE_URL set everything
// lives in PostgreSQL; without it records are in-memory and identities
// go to the JSON snapshot file, which is enough for enrollment tooling
// and local experiments.
func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Database.URL != "" {
		pool, err := postgres.Open(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		return &stores{
			records:    postgres.NewRecordStore(pool),
			identities: postgres.NewIdentityStore(pool),
			close:      func() { _ = pool.Close() },
		}, nil
	}

	fileStore, err := identity.NewFileStore(cfg.Identity.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("opening identity snapshot: %w", err)
	}
	fmt.Println("DATABASE_URL not set, attendance records are in-memory only")
	return &stores{
		records:    database.NewMemory(),
		identities: fileStore,
		close:      func() {},
	}, nil
}

// newVisionClient builds the detection/embedding service client from config.
func newVisionClient(cfg *config.Config) *vision.Client {
	return vision.NewClient(cfg.Vision.URL, cfg.Vision.StrictEmbed, cfg.Vision.DetectMin)
}
