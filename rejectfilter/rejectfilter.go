// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rejectfilter implements the recent-rejects filter: a
// probabilistic set of recently rejected transaction ids that is reset
// whenever the chain tip moves, so that N peers re-advertising the same
// rejected transaction doesn't cause N re-requests.
package rejectfilter

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btcsuite/txreland/bloom"
)

const (
	// NumElements and FalsePositiveRate are fixed by the wire protocol
	// this filter approximates; changing them would change the observed
	// re-request window other nodes rely on.
	NumElements       = 120000
	FalsePositiveRate = 1e-6
)

// Filter is the recent-rejects filter. Invariant R1: a Query that observes a
// new chain tip clears the filter and records the new tip before answering.
//
// Filter is safe for concurrent use.
type Filter struct {
	mtx    sync.Mutex
	filter *bloom.Filter
	tip    chainhash.Hash
}

// New returns an empty recent-rejects filter as of the given chain tip.
func New(tip chainhash.Hash) *Filter {
	f := &Filter{
		filter: bloom.NewFilter(NumElements, randomTweak(), FalsePositiveRate),
		tip:    tip,
	}
	return f
}

// randomTweak draws a fresh 32-bit tweak so that bit positions in a freshly
// reset filter don't correlate with bit positions from before the reset.
func randomTweak() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Extremely unlikely; fall back to a fixed tweak rather than
		// fail a read-only query.
		return 0
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// Query reports whether txid is a member of the filter as of currentTip. If
// currentTip differs from the tip the filter was last reset against, the
// filter is cleared and the new tip recorded before the membership check
// (invariant R1), so a tip change always yields false for every previously
// inserted txid (property P2).
func (f *Filter) Query(txid chainhash.Hash, currentTip chainhash.Hash) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.tip != currentTip {
		f.filter.Reset(randomTweak())
		f.tip = currentTip
	}

	return f.filter.Matches(txid)
}

// Insert unconditionally adds txid to the filter. The caller is responsible
// for having established that txid is eligible for the rejects filter (the
// non-malleable rule) — Insert itself performs no such check; eligibility is
// a caller obligation, not an invariant of Filter.
func (f *Filter) Insert(txid chainhash.Hash) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.filter.Add(txid)
}

// Reset clears the filter and records tip as the new baseline, without
// waiting for the next Query to observe the tip change. Callers that learn
// about a new tip out-of-band (e.g. a block-connected notification) should
// call this eagerly so Tip() is accurate even before the next Query.
func (f *Filter) Reset(tip chainhash.Hash) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.filter.Reset(randomTweak())
	f.tip = tip
}

// Tip returns the chain tip the filter was last reset against, for tests and
// diagnostics.
func (f *Filter) Tip() chainhash.Hash {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	return f.tip
}
