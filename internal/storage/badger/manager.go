package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Manager implements interfaces.StorageManager over a single Badger store
type Manager struct {
	db       *BadgerDB
	jobs     interfaces.JobStorage
	pages    interfaces.PageStorage
	errorLog interfaces.ErrorLogStorage
	logger   arbor.ILogger
}

// NewManager opens the store and wires the collection adapters
func NewManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &Manager{
		db:       db,
		jobs:     NewJobStorage(db, logger),
		pages:    NewPageStorage(db, logger),
		errorLog: NewErrorLogStorage(db, logger),
		logger:   logger,
	}, nil
}

func (m *Manager) JobStorage() interfaces.JobStorage { return m.jobs }

func (m *Manager) PageStorage() interfaces.PageStorage { return m.pages }

func (m *Manager) ErrorLogStorage() interfaces.ErrorLogStorage { return m.errorLog }

func (m *Manager) SchemaVersion() int { return m.db.schemaVersion }

func (m *Manager) Close() error { return m.db.Close() }
