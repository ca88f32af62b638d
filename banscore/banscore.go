// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package banscore provides dynamic, decaying misbehavior scores for peers.
// A score has a persistent component (simple additive banning, as most node
// implementations do for invalid-message penalties) and a decaying
// component, so that bursts of low-grade misbehavior stop mattering once
// the peer settles down while repeated serious misbehavior still
// accumulates.
package banscore

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// defaultHalflife is the time, in seconds, by which the decaying part
	// of the score decays to half of its value, used when a Params value
	// doesn't set Halflife.
	defaultHalflife = 60

	// defaultLifetime is the maximum age, in seconds, of the decaying
	// part of the score for it to still be considered non-zero, used
	// when a Params value doesn't set Lifetime.
	defaultLifetime = 1800

	// defaultBanThreshold is the score at or above which the caller
	// should disconnect and ban the peer, used when a Params value
	// doesn't set BanThreshold.
	defaultBanThreshold = 100
)

// Params tunes how a Score's decaying component behaves. Every field left
// at its zero value falls back to this package's default (the same values
// btcd itself uses), so callers that don't care about tuning can pass
// Params{} and get historically-sane behavior.
//
// A node operator who wants misbehavior to be forgiven faster for one class
// of peer (e.g. a federation of known-good relay partners) than another
// sets a shorter Halflife/Lifetime for that class; BanThreshold lets a
// caller run a stricter or looser ban policy without touching the decay
// math at all.
type Params struct {
	// Halflife is the time, in seconds, by which the decaying part of
	// the score decays to half of its value.
	Halflife int64

	// Lifetime is the maximum age, in seconds, of the decaying part of
	// the score for it to still be considered non-zero.
	Lifetime int64

	// BanThreshold is the score at or above which the caller should
	// disconnect and ban the peer.
	BanThreshold uint32
}

// DefaultParams returns the decay parameters btcd itself has always used.
func DefaultParams() Params {
	return Params{
		Halflife:     defaultHalflife,
		Lifetime:     defaultLifetime,
		BanThreshold: defaultBanThreshold,
	}
}

func (p Params) orDefault() Params {
	if p.Halflife == 0 {
		p.Halflife = defaultHalflife
	}
	if p.Lifetime == 0 {
		p.Lifetime = defaultLifetime
	}
	if p.BanThreshold == 0 {
		p.BanThreshold = defaultBanThreshold
	}
	return p
}

func (p Params) lambda() float64 {
	return math.Ln2 / float64(p.Halflife)
}

// Score is a dynamic ban score. The zero value is immediately usable and
// decays according to DefaultParams; use NewScore to tune the decay model
// per caller.
//
// Score is safe for concurrent use.
type Score struct {
	mtx        sync.Mutex
	params     Params
	lastUnix   int64
	transient  float64
	persistent uint32
}

// NewScore returns a Score that decays according to params. Zero fields in
// params fall back to DefaultParams.
func NewScore(params Params) *Score {
	return &Score{params: params.orDefault()}
}

// String returns the score as a human-readable string.
func (s *Score) String() string {
	return fmt.Sprintf("persistent %v + transient %v at %v = %v as of now",
		s.persistent, s.transient, s.lastUnix, s.Int())
}

// Int returns the current score: the sum of the persistent and decayed
// transient components, evaluated at the current time.
func (s *Score) Int() uint32 {
	return s.at(time.Now())
}

// Increase increases both components by the given amounts and returns the
// resulting score.
func (s *Score) Increase(persistent, transient uint32) uint32 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.increase(persistent, transient, time.Now())
}

// Reset sets both components to zero.
func (s *Score) Reset() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.persistent = 0
	s.transient = 0
	s.lastUnix = 0
}

func (s *Score) at(t time.Time) uint32 {
	s.mtx.Lock()
	params := s.params.orDefault()
	last := s.lastUnix
	tran := s.transient
	pers := s.persistent
	s.mtx.Unlock()

	dt := t.Unix() - last
	if tran < 1 || dt < 0 || dt > params.Lifetime {
		return pers
	}
	return pers + uint32(tran*math.Exp(-1.0*float64(dt)*params.lambda()))
}

func (s *Score) increase(persistent, transient uint32, t time.Time) uint32 {
	params := s.params.orDefault()

	s.persistent += persistent
	tu := t.Unix()
	dt := tu - s.lastUnix

	if transient > 0 {
		if dt > params.Lifetime {
			s.transient = 0
		} else if s.transient > 1 && dt > 0 {
			s.transient *= math.Exp(-1.0 * float64(dt) * params.lambda())
		}
		s.transient += float64(transient)
		s.lastUnix = tu
	}
	return s.persistent + uint32(s.transient)
}
