// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package core

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/mock"
)

// MockMempool is a mock implementation of the Mempool interface.
type MockMempool struct {
	mock.Mock
}

var _ Mempool = (*MockMempool)(nil)

func (m *MockMempool) Exists(txid Txid) bool {
	args := m.Called(txid)
	return args.Get(0).(bool)
}

func (m *MockMempool) Info(txid Txid) (TxInfo, bool) {
	args := m.Called(txid)
	if args.Get(0) == nil {
		return TxInfo{}, false
	}
	return args.Get(0).(TxInfo), args.Get(1).(bool)
}

func (m *MockMempool) InfoAll() []TxInfo {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]TxInfo)
}

func (m *MockMempool) AcceptToMempool(tx TxRef, discardState bool) AcceptResult {
	args := m.Called(tx, discardState)
	return args.Get(0).(AcceptResult)
}

func (m *MockMempool) Check() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMempool) CompareDepthAndScore(a, b Txid) bool {
	args := m.Called(a, b)
	return args.Get(0).(bool)
}

func (m *MockMempool) Size() int {
	args := m.Called()
	return args.Get(0).(int)
}

func (m *MockMempool) DynamicMemoryUsage() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

// MockChainView is a mock implementation of the ChainView interface.
type MockChainView struct {
	mock.Mock
}

var _ ChainView = (*MockChainView)(nil)

func (m *MockChainView) Tip() chainhash.Hash {
	args := m.Called()
	return args.Get(0).(chainhash.Hash)
}

func (m *MockChainView) HaveCoinInCache(op Outpoint) bool {
	args := m.Called(op)
	return args.Get(0).(bool)
}

// MockNetOut is a mock implementation of the NetOut interface.
type MockNetOut struct {
	mock.Mock
}

var _ NetOut = (*MockNetOut)(nil)

func (m *MockNetOut) SendTx(peer PeerId, tx TxRef, wantWitness bool) {
	m.Called(peer, tx, wantWitness)
}

func (m *MockNetOut) SendReject(peer PeerId, code RejectCode, reason string, txid Txid) {
	m.Called(peer, code, reason, txid)
}

func (m *MockNetOut) SendInv(peer PeerId, txids []Txid) {
	m.Called(peer, txids)
}

func (m *MockNetOut) Broadcast(txid Txid) {
	m.Called(txid)
}

func (m *MockNetOut) AskForTransaction(peer PeerId, txid Txid, flags FetchFlags) {
	m.Called(peer, txid, flags)
}

func (m *MockNetOut) Misbehave(peer PeerId, score uint32) {
	m.Called(peer, score)
}

// MockExtraPool is a mock implementation of the ExtraPool interface.
type MockExtraPool struct {
	mock.Mock
}

var _ ExtraPool = (*MockExtraPool)(nil)

func (m *MockExtraPool) Add(tx TxRef) {
	m.Called(tx)
}
