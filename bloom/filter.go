// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloom implements a plain rolling bloom filter: an array of
// bit-lanes addressed by k independent hash functions, with no wire-protocol
// awareness. Higher layers (rejectfilter) decide when to reset it and what
// goes in it.
package bloom

import (
	"encoding/binary"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ln2Squared is simply the square of the natural log of 2.
const ln2Squared = math.Ln2 * math.Ln2

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// maxHashFuncs bounds the number of hash rounds a filter will ever compute,
// independent of the requested false-positive rate, so a pathological
// element/fprate combination can't turn a membership check into a
// denial-of-service.
const maxHashFuncs = 50

// Filter is a fixed-size, fixed-false-positive-rate bloom filter over
// 32-byte hashes. It is not safe for concurrent use; callers that need
// concurrent access (rejectfilter) add their own locking.
type Filter struct {
	bits      []byte
	hashFuncs uint32
	tweak     uint32
}

// NewFilter returns a filter sized for the given number of elements at the
// given false-positive rate. tweak seeds the hash rounds; passing a
// different tweak on every Reset decorrelates false positives across
// instances (and across resets of the same instance).
func NewFilter(elements uint32, tweak uint32, fprate float64) *Filter {
	if fprate > 1.0 {
		fprate = 1.0
	}
	if fprate < 1e-9 {
		fprate = 1e-9
	}

	// m = -(n*ln(p) / ln(2)^2), in bits, rounded up to a whole byte.
	bitLen := uint32(-1 * float64(elements) * math.Log(fprate) / ln2Squared)
	dataLen := (bitLen + 7) / 8
	if dataLen == 0 {
		dataLen = 1
	}

	// k = (m/n) * ln(2)
	hashFuncs := uint32(float64(dataLen*8) / float64(elements) * math.Ln2)
	if hashFuncs == 0 {
		hashFuncs = 1
	}
	hashFuncs = minUint32(hashFuncs, maxHashFuncs)

	return &Filter{
		bits:      make([]byte, dataLen),
		hashFuncs: hashFuncs,
		tweak:     tweak,
	}
}

// hash returns the bit offset in the filter for the given hash round.
//
// bitcoind: 0xfba4c795 chosen as it guarantees a reasonable bit difference
// between hashNum values.
func (f *Filter) hash(hashNum uint32, data []byte) uint32 {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, hashNum*0xfba4c795+f.tweak)
	h := murmur3(append(buf, data...))
	return h % (uint32(len(f.bits)) * 8)
}

// Add inserts a hash into the filter.
func (f *Filter) Add(hash chainhash.Hash) {
	data := hash[:]
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		f.bits[idx/8] |= 1 << (idx % 8)
	}
}

// Matches returns whether a hash is (probably) a member of the filter.
func (f *Filter) Matches(hash chainhash.Hash) bool {
	data := hash[:]
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		if f.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Reset clears every bit in the filter and adopts a new tweak, so that bit
// positions from before the reset don't correlate with bit positions after.
func (f *Filter) Reset(tweak uint32) {
	for i := range f.bits {
		f.bits[i] = 0
	}
	f.tweak = tweak
}

// murmur3 is a minimal 32-bit murmur3 implementation, used only to spread
// hash-round input across the filter's bit array. It is not used anywhere
// security-sensitive; collisions only ever cost an extra false positive.
func murmur3(data []byte) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
		r1 = 15
		r2 = 13
		m  = 5
		n  = 0xe6546b64
	)

	var h uint32
	length := len(data)
	nblocks := length / 4

	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		k *= c1
		k = (k << r1) | (k >> (32 - r1))
		k *= c2

		h ^= k
		h = (h << r2) | (h >> (32 - r2))
		h = h*m + n
	}

	tail := data[nblocks*4:]
	var k uint32
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = (k << r1) | (k >> (32 - r1))
		k *= c2
		h ^= k
	}

	h ^= uint32(length)
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16

	return h
}
