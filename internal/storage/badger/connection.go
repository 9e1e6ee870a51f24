package badger

import (
	"fmt"
	"os"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/common"
)

// CurrentSchemaVersion is the schema generation this build reads and writes.
// Opening a store written by a newer build is refused; older stores are
// migrated forward.
const CurrentSchemaVersion = 1

// SchemaMeta is the single versioning record kept in the store
type SchemaMeta struct {
	Key     string `badgerhold:"key"`
	Version int
}

const schemaMetaKey = "schema"

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store         *badgerhold.Store
	logger        arbor.ILogger
	config        *common.BadgerConfig
	schemaVersion int
}

// NewBadgerDB opens the Badger database, applying schema migrations forward
// as needed
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(config.Path).
		WithLogger(nil). // silence default badger logger, arbor covers it
		WithCompactL0OnClose(true)
	options.Dir = config.Path
	options.ValueDir = config.Path

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	db := &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
	}

	if err := db.migrate(); err != nil {
		store.Close()
		return nil, err
	}

	logger.Debug().
		Str("path", config.Path).
		Int("schema_version", db.schemaVersion).
		Msg("Badger database initialized")

	return db, nil
}

// migrate brings the store forward to CurrentSchemaVersion. Migrations are
// monotonic, numbered, and one-way.
func (b *BadgerDB) migrate() error {
	var meta SchemaMeta
	err := b.store.Get(schemaMetaKey, &meta)
	if err == badgerhold.ErrNotFound {
		// Fresh store
		meta = SchemaMeta{Key: schemaMetaKey, Version: CurrentSchemaVersion}
		if err := b.store.Upsert(schemaMetaKey, &meta); err != nil {
			return fmt.Errorf("failed to write schema version: %w", err)
		}
		b.schemaVersion = CurrentSchemaVersion
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if meta.Version > CurrentSchemaVersion {
		return fmt.Errorf("store schema version %d is newer than supported version %d; refusing to open", meta.Version, CurrentSchemaVersion)
	}

	for v := meta.Version; v < CurrentSchemaVersion; v++ {
		migration, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration from schema version %d", v)
		}
		b.logger.Info().Int("from", v).Int("to", v+1).Msg("Applying schema migration")
		if err := migration(b.store); err != nil {
			return fmt.Errorf("migration %d -> %d failed: %w", v, v+1, err)
		}
		meta.Version = v + 1
		if err := b.store.Upsert(schemaMetaKey, &meta); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", meta.Version, err)
		}
	}

	b.schemaVersion = meta.Version
	return nil
}

// migrations maps a source schema version to the function that raises it by
// one. Version 1 is the first schema; the map grows as the schema does.
var migrations = map[int]func(*badgerhold.Store) error{}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
