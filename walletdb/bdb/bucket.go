package bdb

import (
	"go.etcd.io/bbolt"

	"github.com/kestrelwallet/kestrel/walletdb"
)

type bucket bbolt.Bucket

func (b *bucket) NestedReadBucket(key []byte) walletdb.ReadBucket {
	return b.NestedReadWriteBucket(key)
}

func (b *bucket) NestedReadWriteBucket(key []byte) walletdb.ReadWriteBucket {
	nested := (*bbolt.Bucket)(b).Bucket(key)
	if nested == nil {
		return nil
	}
	return (*bucket)(nested)
}

func (b *bucket) CreateBucket(key []byte) (walletdb.ReadWriteBucket, error) {
	nested, err := (*bbolt.Bucket)(b).CreateBucket(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(nested), nil
}

func (b *bucket) CreateBucketIfNotExists(key []byte) (
	walletdb.ReadWriteBucket, error) {

	nested, err := (*bbolt.Bucket)(b).CreateBucketIfNotExists(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(nested), nil
}

func (b *bucket) DeleteNestedBucket(key []byte) error {
	return convertErr((*bbolt.Bucket)(b).DeleteBucket(key))
}

func (b *bucket) ForEach(f func(k, v []byte) error) error {
	return convertErr((*bbolt.Bucket)(b).ForEach(f))
}

func (b *bucket) Get(key []byte) []byte {
	return (*bbolt.Bucket)(b).Get(key)
}

func (b *bucket) Put(key, value []byte) error {
	return convertErr((*bbolt.Bucket)(b).Put(key, value))
}

func (b *bucket) Delete(key []byte) error {
	return convertErr((*bbolt.Bucket)(b).Delete(key))
}

var _ walletdb.ReadWriteBucket = (*bucket)(nil)
