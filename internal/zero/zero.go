package zero

import "math/big"

// Bytes sets every byte of the slice to zero. It is used to clear key
// material and derived secrets as soon as they are no longer needed.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Bytea32 zeroes a 32-byte array in place.
func Bytea32(b *[32]byte) {
	*b = [32]byte{}
}

// Bytea64 zeroes a 64-byte array in place.
func Bytea64(b *[64]byte) {
	*b = [64]byte{}
}

// BigInt clears the underlying words of a big integer and resets its value
// to zero.
func BigInt(x *big.Int) {
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}
