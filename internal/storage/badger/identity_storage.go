package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

const identityWorkingSetKey = "identity_working_set"

type identityWorkingSetRecord struct {
	Key        string `badgerhold:"key"`
	UserAgents []string
}

// IdentityStorage persists the working-set of identities observed to
// survive an origin's fingerprint checks.
type IdentityStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewIdentityStorage constructs a Badger-backed IdentityStorage.
func NewIdentityStorage(db *BadgerDB, logger arbor.ILogger) *IdentityStorage {
	return &IdentityStorage{db: db, logger: logger}
}

func (s *IdentityStorage) SaveWorkingSet(ctx context.Context, userAgents []string) error {
	return s.db.Store().Upsert(identityWorkingSetKey, &identityWorkingSetRecord{Key: identityWorkingSetKey, UserAgents: userAgents})
}

func (s *IdentityStorage) LoadWorkingSet(ctx context.Context) ([]string, error) {
	var record identityWorkingSetRecord
	if err := s.db.Store().Get(identityWorkingSetKey, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return record.UserAgents, nil
}
