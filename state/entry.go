// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import "github.com/holiman/uint256"

// entryState tags a cached entry.
type entryState uint8

const (
	entryCleanFresh entryState = iota // loaded from trie, unmodified
	entryDirty                        // modified, not yet committed
	entryCommitted                    // written to the trie
)

func (s entryState) String() string {
	switch s {
	case entryCleanFresh:
		return "clean"
	case entryDirty:
		return "dirty"
	case entryCommitted:
		return "committed"
	}
	return "unknown"
}

// entry is a cache record. A nil account means the address is known not to exist.
type entry struct {
	account *Account
	state   entryState
}

func newDirtyEntry(a *Account) *entry { return &entry{account: a, state: entryDirty} }
func newCleanEntry(a *Account) *entry { return &entry{account: a, state: entryCleanFresh} }

func (e *entry) isDirty() bool { return e.state == entryDirty }

func (e *entry) existsAndIsNull(startNonce *uint256.Int) bool {
	return e.account != nil && e.account.IsNull(startNonce)
}

func (e *entry) cloneDirty() *entry {
	c := &entry{state: e.state}
	if e.account != nil {
		c.account = e.account.cloneDirty()
	}
	return c
}

// overwriteWith restores other into e, keeping storage values read by e's account.
func (e *entry) overwriteWith(other *entry) {
	e.state = other.state
	if other.account == nil {
		e.account = nil
		return
	}
	if e.account == nil {
		e.account = other.account
		return
	}
	e.account.overwriteWith(other.account)
}
