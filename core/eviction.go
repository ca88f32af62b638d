// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package core

import "time"

// OnPeerDisconnect is the eviction hook run when a peer goes away: every
// orphan that peer alone introduced is erased, since there is no one left
// to re-request its missing parents from.
func (c *Core) OnPeerDisconnect(peer PeerId) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	n := c.orphans.EraseForPeer(peer)
	if n > 0 {
		log.Debugf("erased %d orphan(s) from disconnected peer %d", n, peer)
	}
}

// OnBlockConnected is the other eviction hook: a new
// chain tip invalidates the recent-rejects filter's false-positive
// guarantee (since the filter's answer for "recently rejected" includes
// spends that may now be valid against the new UTXO set), so the filter is
// reset and re-seeded against tip. Any orphan whose inputs are now spent by
// confirmedSpends can never be resolved and is erased; the rest are left
// in place in case their parents simply haven't been relayed yet.
func (c *Core) OnBlockConnected(tip Txid, confirmedSpends []Outpoint) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.rejects.Reset(tip)

	for _, op := range confirmedSpends {
		for _, child := range c.orphans.FindChildren(op) {
			c.orphans.Erase(*child.Tx.Hash())
		}
	}

	n := c.relayed.Expire(time.Now())
	if n > 0 {
		log.Debugf("expired %d relay-cache entr%s on block connect", n, plural(n))
	}
}

// ExpireOrphans erases every orphan older than cutoff. Callers typically invoke this on a
// periodic timer rather than tying it to chain events.
func (c *Core) ExpireOrphans(cutoff time.Time) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.orphans.ExpireOlderThan(cutoff)
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
