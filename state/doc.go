// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state manages the accounts trie.
// It follows the flow as bellow:
//
//	         o
//	         |
//	[ checkpoint frames ]  (what to restore per address)
//	         |
//	  [ account cache ]    (clean / dirty / committed entries)
//	         |
//	  [ accounts trie ] -> [ storage tries, code and abi stores ]
//
// Every mutation goes through the require path, which records the pre-mutation
// entry into the open checkpoint frame before marking the cached entry dirty.
// Commit writes dirty entries into the tries and yields the new root.
package state
