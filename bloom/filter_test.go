// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func hashFromByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestFilterAddMatches(t *testing.T) {
	f := NewFilter(1000, 0, 1e-6)

	h := hashFromByte(0x01)
	require.False(t, f.Matches(h))

	f.Add(h)
	require.True(t, f.Matches(h))
}

func TestFilterResetClears(t *testing.T) {
	f := NewFilter(1000, 0, 1e-6)

	h := hashFromByte(0x02)
	f.Add(h)
	require.True(t, f.Matches(h))

	f.Reset(1)
	require.False(t, f.Matches(h))
}

func TestFilterResetChangesTweak(t *testing.T) {
	f := NewFilter(1000, 5, 1e-6)
	before := f.tweak
	f.Reset(6)
	require.NotEqual(t, before, f.tweak)
}

func TestFilterLowFalsePositiveRate(t *testing.T) {
	const n = 5000
	f := NewFilter(n, 0, 1e-6)

	for i := 0; i < n; i++ {
		h := chainhash.HashH([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
		f.Add(h)
	}

	falsePositives := 0
	const trials = 20000
	for i := n; i < n+trials; i++ {
		h := chainhash.HashH([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
		if f.Matches(h) {
			falsePositives++
		}
	}

	// fp rate is probabilistic; a loose bound keeps this from being flaky
	// while still catching a badly miscalibrated filter.
	require.Less(t, falsePositives, trials/50)
}
