// Package walletdb defines the namespaced key/value storage interface the
// engine persists credential, session, and vault records through. Backends
// register themselves as drivers; the bdb subpackage provides the bbolt
// implementation used in production.
package walletdb

// Driver describes a storage backend that can create or open databases of
// its type.
type Driver struct {
	DBType string
	Create func(args ...interface{}) (DB, error)
	Open   func(args ...interface{}) (DB, error)
}

// DB is an opened database handle. All access happens inside transactions;
// View and Update wrap the begin/commit/rollback dance for the common case.
type DB interface {
	BeginReadTx() (ReadTx, error)
	BeginReadWriteTx() (ReadWriteTx, error)
	View(f func(tx ReadTx) error) error
	Update(f func(tx ReadWriteTx) error) error
	Close() error
}

// ReadTx is a read-only transaction. It must be rolled back when finished.
type ReadTx interface {
	ReadBucket(key []byte) ReadBucket
	Rollback() error
}

// ReadWriteTx is a transaction that can mutate buckets. Commit persists
// every change made within the transaction atomically.
type ReadWriteTx interface {
	ReadTx

	ReadWriteBucket(key []byte) ReadWriteBucket
	CreateTopLevelBucket(key []byte) (ReadWriteBucket, error)
	DeleteTopLevelBucket(key []byte) error
	Commit() error
}

// ReadBucket provides read access to one bucket's keys and nested buckets.
type ReadBucket interface {
	NestedReadBucket(key []byte) ReadBucket
	Get(key []byte) []byte
	ForEach(func(k, v []byte) error) error
}

// ReadWriteBucket extends ReadBucket with mutation.
type ReadWriteBucket interface {
	ReadBucket

	NestedReadWriteBucket(key []byte) ReadWriteBucket
	CreateBucket(key []byte) (ReadWriteBucket, error)
	CreateBucketIfNotExists(key []byte) (ReadWriteBucket, error)
	DeleteNestedBucket(key []byte) error
	Put(key, value []byte) error
	Delete(key []byte) error
}

var drivers = make(map[string]*Driver)

// RegisterDriver makes a backend available to Create and Open. Registering
// the same type twice is an error.
func RegisterDriver(driver Driver) error {
	if _, exists := drivers[driver.DBType]; exists {
		return ErrDbTypeRegistered
	}

	drivers[driver.DBType] = &driver
	return nil
}

// Create creates and opens a new database of the given registered type.
func Create(dbType string, args ...interface{}) (DB, error) {
	drv, exists := drivers[dbType]
	if !exists {
		return nil, ErrDbUnknownType
	}

	return drv.Create(args...)
}

// Open opens an existing database of the given registered type.
func Open(dbType string, args ...interface{}) (DB, error) {
	drv, exists := drivers[dbType]
	if !exists {
		return nil, ErrDbUnknownType
	}

	return drv.Open(args...)
}

// View runs f inside a read transaction and always rolls back.
func View(db DB, f func(tx ReadTx) error) error {
	return db.View(f)
}

// Update runs f inside a writable transaction, committing on success and
// rolling back on error.
func Update(db DB, f func(tx ReadWriteTx) error) error {
	return db.Update(f)
}
