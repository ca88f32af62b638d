// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package core

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/txreland/banscore"
	"github.com/btcsuite/txreland/orphanpool"
)

// TxRef is the immutable, content-addressed transaction reference. The core
// never mutates it.
type TxRef = *btcutil.Tx

// Txid is the 256-bit content hash identifying a TxRef.
type Txid = chainhash.Hash

// Outpoint identifies a consumable output.
type Outpoint = wire.OutPoint

// PeerId identifies a peer. It is the same type the orphan pool uses to tag
// its entries, so an orphan's FromPeer can be compared directly against a
// PeerCtx.PeerID with no conversion.
type PeerId = orphanpool.PeerId

// LocalPeerID is the reserved PeerId for transactions with no originating
// peer (e.g. local rebroadcast).
const LocalPeerID = orphanpool.LocalPeerID

// PeerFlags carries the handful of per-peer policy bits the ingress/egress
// pipelines consult.
type PeerFlags uint32

const (
	// FlagRelayTx is set when the peer wants transaction relay at all.
	FlagRelayTx PeerFlags = 1 << iota

	// FlagWhitelisted marks a peer exempt from some DoS policy (spec
	// §4.5 steps 1 and 6).
	FlagWhitelisted

	// FlagWitnessPeer is set when the peer advertises segwit support.
	FlagWitnessPeer
)

// Has reports whether every bit in want is set in f.
func (f PeerFlags) Has(want PeerFlags) bool {
	return f&want == want
}

// FetchFlags are the flags attached to an outbound GETDATA / ASKFOR request
// for a transaction.
type FetchFlags uint32

// FetchWitness requests the witness-serialized form of a transaction.
const FetchWitness FetchFlags = 1 << 0

// OutFlags are the output-only flags the ingress pipeline sets on a PeerCtx
// as a side effect of processing.
type OutFlags struct {
	// NewTransaction is set when this peer's input produced at least one
	// newly accepted transaction.
	NewTransaction bool
}

// PeerCtx is the caller-owned, per-peer context passed into every ingress
// and egress call. The core never allocates or frees a PeerCtx;
// it only reads and, for OutFlags/MisbehaviorScore, updates it.
type PeerCtx struct {
	PeerID PeerId

	Flags         PeerFlags
	LocalServices PeerFlags // FlagWitnessPeer here means "we support witness"
	SendVersion   uint32

	// MisbehaviorScore accumulates DoS score across ingress calls. Shared
	// with banscore so repeated low-grade misbehavior decays instead of
	// accumulating forever.
	MisbehaviorScore *banscore.Score

	OutFlags OutFlags

	// KnownInventory is the peer's "already knows about this" shadow set.
	// Initialized by NewPeerCtx.
	KnownInventory *knownInventory
}

// NewPeerCtx returns a PeerCtx ready for use, with its misbehavior score and
// known-inventory cache initialized. banScoreParams tunes how this peer's
// score decays; pass banscore.Params{} (or Config.BanScoreParams) for the
// historical btcd defaults.
func NewPeerCtx(id PeerId, flags, localServices PeerFlags, sendVersion uint32, banScoreParams banscore.Params) *PeerCtx {
	return &PeerCtx{
		PeerID:           id,
		Flags:            flags,
		LocalServices:    localServices,
		SendVersion:      sendVersion,
		MisbehaviorScore: banscore.NewScore(banScoreParams),
		KnownInventory:   newKnownInventory(knownInventoryLimit),
	}
}

// RejectCode is a wire.RejectCode generalized with an "internal" range: any
// value >= RejectInternalThreshold is a purely-internal bookkeeping reason
// that must never be serialized onto the wire.
// Values below the threshold correspond 1:1 to wire.RejectCode.
type RejectCode uint32

// RejectInternalThreshold is the boundary described above.
const RejectInternalThreshold RejectCode = 0x100

// Parameters fixed by wire-protocol compatibility.
const (
	// MaxRejectMessageLength bounds the human-readable reason string in
	// a REJECT message.
	MaxRejectMessageLength = 111

	// MaxInvSz is the maximum number of entries in one INV message.
	MaxInvSz = wire.MaxInvPerMsg

	// CompactExtraCutoff is the recursive serialized size, in bytes,
	// under which a transaction is handed to the compact-block extra
	// pool regardless of why it didn't make the mempool.
	CompactExtraCutoff = 100000
)

// AcceptOutcome is the three-way result of attempting to admit a
// transaction to the mempool.
type AcceptOutcome int

const (
	AcceptAccepted AcceptOutcome = iota
	AcceptMissingInputs
	AcceptInvalid
)

// ValidationState carries the reason a transaction was not (unconditionally)
// accepted, and whatever the validator needs callers to know about re-using
// its bytes later.
type ValidationState struct {
	Code  RejectCode
	Reason string

	// DoS is the misbehavior penalty associated with this outcome. Zero
	// means "policy rejection", not "attacker".
	DoS uint32

	// CorruptionPossible is set when the validator cannot rule out that
	// a differently-serialized version of these same semantics would be
	// accepted later (part of the non-malleable rule).
	CorruptionPossible bool
}

// HasWitness reports whether tx carries witness data, the other half of the
// non-malleable rule.
func HasWitness(tx TxRef) bool {
	return tx.MsgTx().HasWitness()
}

// NonMalleable reports whether a transaction is eligible for the rejects
// filter: no witness, and the validator did not flag corruption-possible.
func NonMalleable(tx TxRef, state ValidationState) bool {
	return !HasWitness(tx) && !state.CorruptionPossible
}

// AcceptResult is what the external validator (Mempool.AcceptToMempool)
// returns for a single transaction.
type AcceptResult struct {
	Outcome AcceptOutcome
	State   ValidationState

	// Removed holds any transactions evicted from the mempool as a side
	// effect of accepting this one, forwarded to the
	// compact-block extra pool.
	Removed []TxRef
}

// TxInfo is the contextual metadata the mempool exposes about one of its
// entries.
type TxInfo struct {
	Tx      TxRef
	Time    time.Time
	FeeRate int64
}
