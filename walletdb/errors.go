package walletdb

import "errors"

var (
	// ErrDbTypeRegistered is returned when a driver registers a database
	// type that is already taken.
	ErrDbTypeRegistered = errors.New("database type already registered")

	// ErrDbUnknownType is returned when no driver matches the requested
	// database type.
	ErrDbUnknownType = errors.New("unknown database type")

	// ErrDbDoesNotExist is returned when opening a database file that is
	// not there.
	ErrDbDoesNotExist = errors.New("database does not exist")

	// ErrDbNotOpen is returned when accessing a database that has been
	// closed.
	ErrDbNotOpen = errors.New("database not open")

	// ErrInvalid is returned for files that are not valid databases.
	ErrInvalid = errors.New("invalid database")
)

var (
	// ErrTxClosed is returned when committing or rolling back a
	// transaction that has already finished.
	ErrTxClosed = errors.New("tx closed")

	// ErrTxNotWritable is returned when a mutation is attempted inside a
	// read-only transaction.
	ErrTxNotWritable = errors.New("tx not writable")
)

var (
	// ErrBucketNotFound is returned when accessing a bucket that has not
	// been created.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrBucketExists is returned when creating a bucket that already
	// exists.
	ErrBucketExists = errors.New("bucket already exists")

	// ErrBucketNameRequired is returned when creating a bucket with an
	// empty name.
	ErrBucketNameRequired = errors.New("bucket name required")

	// ErrKeyRequired is returned when putting a zero-length key.
	ErrKeyRequired = errors.New("key required")

	// ErrIncompatibleValue is returned when a key operation collides
	// with an existing bucket, or a bucket operation with an existing
	// key.
	ErrIncompatibleValue = errors.New("incompatible value")
)
