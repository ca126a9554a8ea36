package bdb

import (
	"go.etcd.io/bbolt"

	"github.com/kestrelwallet/kestrel/walletdb"
)

type transaction struct {
	boltTx *bbolt.Tx
}

func (tx *transaction) ReadBucket(key []byte) walletdb.ReadBucket {
	bkt := tx.boltTx.Bucket(key)
	if bkt == nil {
		return nil
	}
	return (*bucket)(bkt)
}

func (tx *transaction) ReadWriteBucket(key []byte) walletdb.ReadWriteBucket {
	bkt := tx.boltTx.Bucket(key)
	if bkt == nil {
		return nil
	}
	return (*bucket)(bkt)
}

func (tx *transaction) CreateTopLevelBucket(key []byte) (
	walletdb.ReadWriteBucket, error) {

	bkt, err := tx.boltTx.CreateBucketIfNotExists(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(bkt), nil
}

func (tx *transaction) DeleteTopLevelBucket(key []byte) error {
	return convertErr(tx.boltTx.DeleteBucket(key))
}

func (tx *transaction) Commit() error {
	return convertErr(tx.boltTx.Commit())
}

func (tx *transaction) Rollback() error {
	return convertErr(tx.boltTx.Rollback())
}

var _ walletdb.ReadWriteTx = (*transaction)(nil)
