// Package bdb implements the walletdb interface on top of bbolt.
package bdb

import (
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kestrelwallet/kestrel/walletdb"
)

type db bbolt.DB

func (db *db) beginTx(writable bool) (*transaction, error) {
	boltTx, err := (*bbolt.DB)(db).Begin(writable)
	if err != nil {
		return nil, convertErr(err)
	}
	return &transaction{boltTx: boltTx}, nil
}

func (db *db) BeginReadTx() (walletdb.ReadTx, error) {
	return db.beginTx(false)
}

func (db *db) BeginReadWriteTx() (walletdb.ReadWriteTx, error) {
	return db.beginTx(true)
}

func (db *db) View(f func(tx walletdb.ReadTx) error) error {
	tx, err := db.BeginReadTx()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	return f(tx)
}

func (db *db) Update(f func(tx walletdb.ReadWriteTx) error) error {
	tx, err := db.BeginReadWriteTx()
	if err != nil {
		return err
	}

	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (db *db) Close() error {
	return convertErr((*bbolt.DB)(db).Close())
}

var _ walletdb.DB = (*db)(nil)

func openDB(dbPath string, noFreelistSync bool, create bool,
	timeout time.Duration) (walletdb.DB, error) {

	if !create && !fileExists(dbPath) {
		return nil, walletdb.ErrDbDoesNotExist
	}

	options := &bbolt.Options{
		NoFreelistSync: noFreelistSync,
		FreelistType:   bbolt.FreelistMapType,
		Timeout:        timeout,
	}

	boltDB, err := bbolt.Open(dbPath, 0600, options)
	return (*db)(boltDB), convertErr(err)
}

func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

func convertErr(err error) error {
	switch err {
	case bbolt.ErrDatabaseNotOpen:
		return walletdb.ErrDbNotOpen
	case bbolt.ErrInvalid:
		return walletdb.ErrInvalid

	case bbolt.ErrTxNotWritable:
		return walletdb.ErrTxNotWritable
	case bbolt.ErrTxClosed:
		return walletdb.ErrTxClosed

	case bbolt.ErrBucketNotFound:
		return walletdb.ErrBucketNotFound
	case bbolt.ErrBucketExists:
		return walletdb.ErrBucketExists
	case bbolt.ErrBucketNameRequired:
		return walletdb.ErrBucketNameRequired
	case bbolt.ErrKeyRequired:
		return walletdb.ErrKeyRequired
	case bbolt.ErrIncompatibleValue:
		return walletdb.ErrIncompatibleValue
	}

	return err
}
