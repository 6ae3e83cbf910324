package state

import (
	dbm "github.com/cometbft/cometbft-db"

	"github.com/zkipschain/zkips/pkg/account"
	"github.com/zkipschain/zkips/pkg/field"
)

// dbStorage implements Storage over a CometBFT dbm.DB: SetSync for durable
// single-key writes, a Batch for the multi-key commits SaveState performs.
type dbStorage struct {
	db dbm.DB
}

// NewMemoryStorage returns a Storage backed by an in-memory dbm.DB, suitable
// for tests and ephemeral nodes.
func NewMemoryStorage() Storage {
	return &dbStorage{db: dbm.NewMemDB()}
}

// NewLevelDBStorage returns a Storage backed by a persistent goleveldb
// instance rooted at dir.
func NewLevelDBStorage(name, dir string) (Storage, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, wrapErr("open leveldb", err)
	}
	return &dbStorage{db: db}, nil
}

func (s *dbStorage) GetAccount(id account.ID) (*account.Account, error) {
	raw, err := s.db.Get(accountKey(id))
	if err != nil {
		return nil, wrapErr("get account", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	acc, err := account.Deserialize(raw)
	if err != nil {
		return nil, wrapErr("decode account", err)
	}
	return acc, nil
}

func (s *dbStorage) SaveAccount(acc *account.Account) error {
	if err := s.db.SetSync(accountKey(acc.ID), acc.Serialize()); err != nil {
		return wrapErr("save account", err)
	}
	return nil
}

func (s *dbStorage) DeleteAccount(id account.ID) error {
	if err := s.db.Delete(accountKey(id)); err != nil {
		return wrapErr("delete account", err)
	}
	return nil
}

func (s *dbStorage) GetStorageRoot() (field.Element, error) {
	raw, err := s.db.Get(rootKey())
	if err != nil {
		return field.Zero(), wrapErr("get storage root", err)
	}
	if len(raw) == 0 {
		return field.Zero(), nil
	}
	return field.FromBytesLE(raw), nil
}

// LoadState rebuilds a full State snapshot by scanning every account-prefixed
// key, then folding each record into a fresh Merkle tree so Root always
// matches a full rebuild.
func (s *dbStorage) LoadState() (*State, error) {
	st := New()

	rootBytes, err := s.db.Get(rootKey())
	if err != nil {
		return nil, wrapErr("load root", err)
	}
	if len(rootBytes) > 0 {
		st.Root = field.FromBytesLE(rootBytes)
	}

	iter, err := s.db.Iterator([]byte{prefixAccount}, []byte{prefixAccount + 1})
	if err != nil {
		return nil, wrapErr("load state: open iterator", err)
	}
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		acc, err := account.Deserialize(iter.Value())
		if err != nil {
			return nil, wrapErr("load state: decode account", err)
		}
		st.Accounts[string(acc.ID)] = acc
	}
	if err := iter.Error(); err != nil {
		return nil, wrapErr("load state: iterate", err)
	}

	st.RecomputeRoot()
	return st, nil
}

// SaveState persists every account plus the root in a single atomic batch.
func (s *dbStorage) SaveState(st *State) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, acc := range st.Accounts {
		if err := batch.Set(accountKey(acc.ID), acc.Serialize()); err != nil {
			return wrapErr("save state: stage account", err)
		}
	}
	if err := batch.Set(rootKey(), st.Root.ToBytesLE()); err != nil {
		return wrapErr("save state: stage root", err)
	}
	if err := batch.WriteSync(); err != nil {
		return wrapErr("save state: commit batch", err)
	}
	return nil
}

// Clear removes every key the store owns, used by tests that need a fresh
// backend without reopening the underlying database.
func (s *dbStorage) Clear() error {
	iter, err := s.db.Iterator(nil, nil)
	if err != nil {
		return wrapErr("clear: open iterator", err)
	}
	var keys [][]byte
	for ; iter.Valid(); iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	closeErr := iter.Close()
	if err := iter.Error(); err != nil {
		return wrapErr("clear: iterate", err)
	}
	if closeErr != nil {
		return wrapErr("clear: close iterator", closeErr)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete(k); err != nil {
			return wrapErr("clear: stage delete", err)
		}
	}
	if err := batch.WriteSync(); err != nil {
		return wrapErr("clear: commit batch", err)
	}
	return nil
}
