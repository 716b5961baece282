// Package badgerdb adapts dgraph-io's badger to the dbm.DB interface, as an
// alternative to the backends cometbft-db ships with.
package badgerdb

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"

	dbm "github.com/cometbft/cometbft-db"
)

var (
	// ErrKeyEmpty is returned when attempting to use an empty or nil key.
	ErrKeyEmpty = errors.New("key cannot be empty")

	// ErrValueNil is returned when attempting to set a nil value.
	ErrValueNil = errors.New("value cannot be nil")
)

type BadgerDB struct {
	db *badger.DB
}

var _ dbm.DB = (*BadgerDB)(nil)

// NewDB opens a badger store rooted at dir/dbName, creating the directory if
// needed. Badger has no notion of named databases inside one directory, so
// the name becomes part of the path.
func NewDB(dbName, dir string) (*BadgerDB, error) {
	path := filepath.Join(dir, dbName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false // the *Sync methods sync explicitly
	opts.Logger = nil       // badger is too chatty by default
	return NewDBWithOptions(opts)
}

// NewDBWithOptions opens a badger store with the given badger options, for
// callers that need to tune more than NewDB exposes.
func NewDBWithOptions(opts badger.Options) (*BadgerDB, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDB{db: db}, nil
}

// NewInMemoryDB opens a lightweight in-memory badger store. Mainly useful
// for unit tests.
func NewInMemoryDB() (*BadgerDB, error) {
	opts := badger.DefaultOptions("")
	opts.InMemory = true
	opts.NumCompactors = 2          // minimize number of goroutines
	opts.Compression = options.None // short-lived data, skip the overhead
	opts.ZSTDCompressionLevel = 0
	opts.Logger = nil
	return NewDBWithOptions(opts)
}

func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrKeyEmpty
	}
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		val, err = item.ValueCopy(nil)
		if err == nil && val == nil {
			// a stored empty value comes back non-nil, only a missing key
			// yields nil
			val = []byte{}
		}
		return err
	})
	return val, err
}

func (b *BadgerDB) Has(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, ErrKeyEmpty
	}
	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (b *BadgerDB) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if value == nil {
		return ErrValueNil
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerDB) SetSync(key, value []byte) error {
	if err := b.Set(key, value); err != nil {
		return err
	}
	return b.db.Sync()
}

func (b *BadgerDB) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *BadgerDB) DeleteSync(key []byte) error {
	if err := b.Delete(key); err != nil {
		return err
	}
	return b.db.Sync()
}

// Compact flattens the LSM tree. Badger does not expose range compaction, so
// start and end are ignored.
func (b *BadgerDB) Compact(start, end []byte) error {
	return b.db.Flatten(2)
}

func (b *BadgerDB) Close() error {
	return b.db.Close()
}

func (b *BadgerDB) Print() error {
	return nil
}

func (b *BadgerDB) Stats() map[string]string {
	return nil
}

func (b *BadgerDB) Iterator(start, end []byte) (dbm.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	return b.newIterator(start, end, opts)
}

func (b *BadgerDB) ReverseIterator(start, end []byte) (dbm.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	// reversed, the badger iterator seeks from the exclusive end bound and
	// stops at the inclusive start bound
	return b.newIterator(end, start, opts)
}

func (b *BadgerDB) newIterator(seek, stop []byte, opts badger.IteratorOptions) (*badgerDBIterator, error) {
	if (seek != nil && len(seek) == 0) || (stop != nil && len(stop) == 0) {
		return nil, ErrKeyEmpty
	}
	txn := b.db.NewTransaction(false)
	iter := txn.NewIterator(opts)
	iter.Rewind()
	iter.Seek(seek)
	if opts.Reverse && iter.Valid() && bytes.Equal(iter.Item().Key(), seek) {
		// the seek bound of a reverse iterator is exclusive
		iter.Next()
	}
	return &badgerDBIterator{
		reverse: opts.Reverse,
		seek:    seek,
		stop:    stop,

		txn:  txn,
		iter: iter,
	}, nil
}

func (b *BadgerDB) NewBatch() dbm.Batch {
	return &badgerDBBatch{
		db: b.db,
		wb: b.db.NewWriteBatch(),
	}
}

var _ dbm.Batch = (*badgerDBBatch)(nil)

type badgerDBBatch struct {
	db *badger.DB
	wb *badger.WriteBatch
}

func (b *badgerDBBatch) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if value == nil {
		return ErrValueNil
	}
	return b.wb.Set(key, value)
}

func (b *badgerDBBatch) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	return b.wb.Delete(key)
}

func (b *badgerDBBatch) Write() error {
	return b.wb.Flush()
}

func (b *badgerDBBatch) WriteSync() error {
	if err := b.Write(); err != nil {
		return err
	}
	return b.db.Sync()
}

func (b *badgerDBBatch) Close() error {
	b.wb.Cancel()
	return nil
}

type badgerDBIterator struct {
	reverse    bool
	seek, stop []byte

	txn  *badger.Txn
	iter *badger.Iterator

	lastErr error
}

var _ dbm.Iterator = (*badgerDBIterator)(nil)

func (i *badgerDBIterator) Close() error {
	i.iter.Close()
	i.txn.Discard()
	return nil
}

func (i *badgerDBIterator) Domain() (start, end []byte) { return i.seek, i.stop }
func (i *badgerDBIterator) Error() error                { return i.lastErr }

func (i *badgerDBIterator) Next() {
	if !i.Valid() {
		panic("iterator is invalid")
	}
	i.iter.Next()
}

func (i *badgerDBIterator) Valid() bool {
	if !i.iter.Valid() {
		return false
	}
	if len(i.stop) == 0 {
		return true
	}
	// stop is exclusive going forward, inclusive in reverse
	key := i.iter.Item().Key()
	if c := bytes.Compare(key, i.stop); (!i.reverse && c >= 0) || (i.reverse && c < 0) {
		return false
	}
	return true
}

func (i *badgerDBIterator) Key() []byte {
	if !i.Valid() {
		panic("iterator is invalid")
	}
	return i.iter.Item().KeyCopy(nil)
}

func (i *badgerDBIterator) Value() []byte {
	if !i.Valid() {
		panic("iterator is invalid")
	}
	val, err := i.iter.Item().ValueCopy(nil)
	if err != nil {
		i.lastErr = err
	}
	return val
}
