package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
)

// Manager bundles the Badger-backed storage implementations
type Manager struct {
	db     *BadgerDB
	trace  interfaces.TraceStorage
	kv     interfaces.KeyValueStorage
	tokens interfaces.TokenStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		trace:  NewTraceStorage(db, logger),
		kv:     NewKVStorage(db, logger),
		tokens: NewTokenStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// TraceStorage returns the workflow trace storage interface
func (m *Manager) TraceStorage() interfaces.TraceStorage {
	return m.trace
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// TokenStorage returns the OAuth token storage interface
func (m *Manager) TokenStorage() interfaces.TokenStorage {
	return m.tokens
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
