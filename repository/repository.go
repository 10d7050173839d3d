package repository

import (
	"encoding/binary"
	"errors"

	"massa-api/db"
	"massa-api/models"
)

var (
	blockPrefix = []byte("block:")
	rollsPrefix = []byte("rolls:")
)

// BlockRecord is the persisted form of a block and its finality
type BlockRecord struct {
	ID    models.BlockId `cbor:"1,keyasint"`
	Block models.Block   `cbor:"2,keyasint"`
	Final bool           `cbor:"3,keyasint"`
}

// RollEntry is one persisted roll count
type RollEntry struct {
	Cycle   uint64
	Address models.Address
	Rolls   uint64
}

// Repository abstracts the storage layer from the graph and staking state
type Repository interface {
	PutBlocks(records ...*BlockRecord) error
	GetAllBlocks() ([]*BlockRecord, error)
	PutRolls(entry RollEntry) error
	GetAllRolls() ([]RollEntry, error)
}

// LevelRepository implements Repository using LevelDB as the storage backend
type LevelRepository struct {
	db *db.LevelDB
}

// NewLevelRepository creates and returns a new LevelRepository instance
func NewLevelRepository(db *db.LevelDB) *LevelRepository {
	return &LevelRepository{db: db}
}

func blockKey(id models.BlockId) []byte {
	return append(append([]byte{}, blockPrefix...), id.Bytes()...)
}

func rollsKey(cycle uint64, addr models.Address) []byte {
	key := append([]byte{}, rollsPrefix...)
	key = binary.BigEndian.AppendUint64(key, cycle)
	return append(key, addr...)
}

// PutBlocks stores block records in one batch
func (r *LevelRepository) PutBlocks(records ...*BlockRecord) error {
	keys := make([][]byte, 0, len(records))
	values := make([][]byte, 0, len(records))
	for _, rec := range records {
		data, err := models.EncodeCBOR(rec)
		if err != nil {
			return err
		}
		keys = append(keys, blockKey(rec.ID))
		values = append(values, data)
	}
	return r.db.WriteBatch(keys, values)
}

// GetAllBlocks retrieves every stored block record
func (r *LevelRepository) GetAllBlocks() ([]*BlockRecord, error) {
	iter := r.db.NewPrefixIterator(blockPrefix)
	defer iter.Release()

	var records []*BlockRecord
	for iter.Next() {
		var rec BlockRecord
		if err := models.DecodeCBOR(iter.Value(), &rec); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, iter.Error()
}

// PutRolls stores the roll count of an address for a cycle
func (r *LevelRepository) PutRolls(entry RollEntry) error {
	value := binary.BigEndian.AppendUint64(nil, entry.Rolls)
	return r.db.Put(rollsKey(entry.Cycle, entry.Address), value)
}

// GetAllRolls retrieves every stored roll count
func (r *LevelRepository) GetAllRolls() ([]RollEntry, error) {
	iter := r.db.NewPrefixIterator(rollsPrefix)
	defer iter.Release()

	var entries []RollEntry
	for iter.Next() {
		key := iter.Key()[len(rollsPrefix):]
		if len(key) < 8 || len(iter.Value()) != 8 {
			return nil, errors.New("corrupted rolls entry")
		}
		entries = append(entries, RollEntry{
			Cycle:   binary.BigEndian.Uint64(key[:8]),
			Address: models.Address(key[8:]),
			Rolls:   binary.BigEndian.Uint64(iter.Value()),
		})
	}
	return entries, iter.Error()
}
