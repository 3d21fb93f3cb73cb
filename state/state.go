// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/kv"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/metrics"
	"github.com/citahub/cita-executor/muxdb"
	"github.com/citahub/cita-executor/stackedmap"
)

const (
	codeStoreName = "state.code"
	abiStoreName  = "state.abi"
)

var logger = log.WithContext("pkg", "state")

// ErrInsufficientBalance is returned when a debit exceeds the balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return &Error{err}
}

// requireCache hints what to pre-fetch when an account is cached.
type requireCache uint8

const (
	requireNone requireCache = iota
	requireCodeSize
	requireCode
	requireABISize
	requireABI
)

// State manages the world state.
type State struct {
	db          *muxdb.MuxDB
	root        cita.Bytes32
	trie        *muxdb.Trie                                  // the accounts trie
	cache       map[cita.Address]*entry                      // local cache of accounts
	checkpoints *stackedmap.StackedMap[cita.Address, *entry] // what to restore per address, nil for absent
	startNonce  uint256.Int
	codeStore   kv.Store
	abiStore    kv.Store
}

// New creates a state object at the given root. The root must be present in db.
func New(db *muxdb.MuxDB, root cita.Bytes32) (*State, error) {
	if root.IsZero() {
		root = cita.EmptyRoot
	}
	has, err := db.Contains(root)
	if err != nil {
		return nil, wrapErr(err)
	}
	if !has {
		return nil, wrapErr(errors.Errorf("invalid state root %v", root))
	}
	trie, err := db.NewTrie(root)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &State{
		db:          db,
		root:        root,
		trie:        trie,
		cache:       make(map[cita.Address]*entry),
		checkpoints: stackedmap.New[cita.Address, *entry](),
		codeStore:   db.NewBlobStore(codeStoreName),
		abiStore:    db.NewBlobStore(abiStoreName),
	}, nil
}

// SetAccountStartNonce sets the nonce assigned to new accounts.
func (s *State) SetAccountStartNonce(n *uint256.Int) {
	s.startNonce.Set(n)
}

// AccountStartNonce returns the nonce assigned to new accounts.
func (s *State) AccountStartNonce() *uint256.Int {
	return s.startNonce.Clone()
}

// Root returns the root of the last commit.
func (s *State) Root() cita.Bytes32 {
	return s.root
}

// DB returns the underlying database.
func (s *State) DB() *muxdb.MuxDB {
	return s.db
}

// Checkpoint pushes an empty checkpoint frame.
func (s *State) Checkpoint() {
	s.checkpoints.Push()
}

// CheckpointDepth returns the count of open checkpoints.
func (s *State) CheckpointDepth() int {
	return s.checkpoints.Depth()
}

// DiscardCheckpoint pops the top frame, keeping its changes.
// The records move into the parent frame unless the parent already has them.
func (s *State) DiscardCheckpoint() {
	s.checkpoints.Merge()
}

// RevertToCheckpoint pops the top frame and restores every recorded entry.
func (s *State) RevertToCheckpoint() {
	frame := s.checkpoints.Pop()
	for addr, orig := range frame {
		cur, ok := s.cache[addr]
		if orig != nil {
			if ok {
				cur.overwriteWith(orig)
			} else {
				s.cache[addr] = orig
			}
			continue
		}
		// a clean entry reflects the trie, never drop it
		if ok && cur.isDirty() {
			delete(s.cache, addr)
		}
	}
	metricCheckpointReverts().Add(1)
	logger.Trace("checkpoint reverted", "depth", s.checkpoints.Depth(), "entries", len(frame))
}

// insertCache puts the entry into cache. A dirty insert records the overwritten entry into the open frame.
func (s *State) insertCache(addr cita.Address, e *entry) {
	old := s.cache[addr]
	s.cache[addr] = e
	if e.isDirty() {
		s.checkpoints.Record(addr, func() *entry { return old })
	}
}

// noteCache records a snapshot of the current entry before it is mutated in place.
func (s *State) noteCache(addr cita.Address) {
	s.checkpoints.Record(addr, func() *entry {
		if e, ok := s.cache[addr]; ok {
			return e.cloneDirty()
		}
		return nil
	})
}

// NewContract installs a fresh dirty contract account, overwriting whatever was cached.
func (s *State) NewContract(addr cita.Address, balance, nonceOffset *uint256.Int) {
	var nonce uint256.Int
	nonce.Add(&s.startNonce, nonceOffset)
	s.insertCache(addr, newDirtyEntry(NewContractAccount(balance, &nonce)))
}

// KillAccount tombstones the account. Commit removes it from the trie.
func (s *State) KillAccount(addr cita.Address) {
	s.insertCache(addr, newDirtyEntry(nil))
}

func (s *State) loadAccount(addr cita.Address) (*Account, error) {
	data, err := s.trie.Get(addr[:])
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	a, err := DecodeAccount(data)
	if err != nil {
		return nil, wrapErr(err)
	}
	return a, nil
}

func (s *State) updateAccountCache(req requireCache, a *Account) error {
	switch req {
	case requireCode, requireCodeSize:
		if a.code.cached() {
			return nil
		}
		if code, ok := codeCache.Get(a.code.hash); ok {
			a.code.data = code.([]byte)
			a.code.size = len(a.code.data)
			return nil
		}
		if req == requireCodeSize && a.code.size >= 0 {
			return nil
		}
		if err := a.code.load(s.codeStore); err != nil {
			return wrapErr(errors.Wrapf(err, "load code %v", a.code.hash))
		}
		codeCache.Add(a.code.hash, a.code.data)
	case requireABI, requireABISize:
		if a.abi.cached() || (req == requireABISize && a.abi.size >= 0) {
			return nil
		}
		if err := a.abi.load(s.abiStore); err != nil {
			return wrapErr(errors.Wrapf(err, "load abi %v", a.abi.hash))
		}
	}
	return nil
}

// ensureCached resolves the account through the cache, loading it from the trie when missing,
// then applies f. A loaded account is cached clean.
func ensureCached[T any](s *State, addr cita.Address, req requireCache, f func(*Account) T) (T, error) {
	if e, ok := s.cache[addr]; ok {
		if e.account != nil {
			if err := s.updateAccountCache(req, e.account); err != nil {
				var zero T
				return zero, err
			}
		}
		return f(e.account), nil
	}
	a, err := s.loadAccount(addr)
	if err != nil {
		var zero T
		return zero, err
	}
	if a != nil {
		if err := s.updateAccountCache(req, a); err != nil {
			var zero T
			return zero, err
		}
	}
	r := f(a)
	s.insertCache(addr, newCleanEntry(a))
	return r, nil
}

// Exists returns whether the account exists.
func (s *State) Exists(addr cita.Address) (bool, error) {
	return ensureCached(s, addr, requireNone, func(a *Account) bool { return a != nil })
}

// ExistsAndNotNull returns whether the account exists and is not null.
func (s *State) ExistsAndNotNull(addr cita.Address) (bool, error) {
	return ensureCached(s, addr, requireNone, func(a *Account) bool {
		return a != nil && !a.IsNull(&s.startNonce)
	})
}

// ExistsAndHasCodeOrNonce returns whether the account exists with code or a nonce past the start nonce.
func (s *State) ExistsAndHasCodeOrNonce(addr cita.Address) (bool, error) {
	return ensureCached(s, addr, requireCodeSize, func(a *Account) bool {
		return a != nil && (a.code.hash != cita.EmptyCodeHash || !a.nonce.Eq(&s.startNonce))
	})
}

// Balance returns the balance, zero for absent accounts.
func (s *State) Balance(addr cita.Address) (*uint256.Int, error) {
	return ensureCached(s, addr, requireNone, func(a *Account) *uint256.Int {
		if a == nil {
			return new(uint256.Int)
		}
		return a.Balance()
	})
}

// Nonce returns the nonce, the start nonce for absent accounts.
func (s *State) Nonce(addr cita.Address) (*uint256.Int, error) {
	return ensureCached(s, addr, requireNone, func(a *Account) *uint256.Int {
		if a == nil {
			return s.startNonce.Clone()
		}
		return a.Nonce()
	})
}

// StorageRoot returns the storage root. It's unknown for absent accounts or with pending storage writes.
func (s *State) StorageRoot(addr cita.Address) (cita.Bytes32, bool, error) {
	type result struct {
		root cita.Bytes32
		ok   bool
	}
	r, err := ensureCached(s, addr, requireNone, func(a *Account) result {
		if a == nil {
			return result{}
		}
		root, ok := a.StorageRoot()
		return result{root, ok}
	})
	return r.root, r.ok, err
}

// StorageAt returns the storage value for key.
func (s *State) StorageAt(addr cita.Address, key cita.Bytes32) (cita.Bytes32, error) {
	addrHash := cita.Keccak256(addr[:])
	if e, ok := s.cache[addr]; ok {
		if e.account == nil {
			return cita.Bytes32{}, nil
		}
		v, err := e.account.StorageAt(s.db, addrHash, key)
		return v, wrapErr(err)
	}

	a, err := s.loadAccount(addr)
	if err != nil {
		return cita.Bytes32{}, err
	}
	var v cita.Bytes32
	if a != nil {
		if v, err = a.StorageAt(s.db, addrHash, key); err != nil {
			return cita.Bytes32{}, wrapErr(err)
		}
	}
	s.insertCache(addr, newCleanEntry(a))
	return v, nil
}

// Code returns the code, nil for absent accounts or accounts without code.
func (s *State) Code(addr cita.Address) ([]byte, error) {
	return ensureCached(s, addr, requireCode, func(a *Account) []byte {
		if a == nil {
			return nil
		}
		code, _ := a.Code()
		return code
	})
}

// CodeHash returns the code hash, the empty code hash for absent accounts.
func (s *State) CodeHash(addr cita.Address) (cita.Bytes32, error) {
	return ensureCached(s, addr, requireNone, func(a *Account) cita.Bytes32 {
		if a == nil {
			return cita.EmptyCodeHash
		}
		return a.CodeHash()
	})
}

// CodeSize returns the code size if it's known.
func (s *State) CodeSize(addr cita.Address) (int, bool, error) {
	type result struct {
		size int
		ok   bool
	}
	r, err := ensureCached(s, addr, requireCodeSize, func(a *Account) result {
		if a == nil {
			return result{}
		}
		size, ok := a.CodeSize()
		return result{size, ok}
	})
	return r.size, r.ok, err
}

// ABI returns the abi, nil for absent accounts or accounts without abi.
func (s *State) ABI(addr cita.Address) ([]byte, error) {
	return ensureCached(s, addr, requireABI, func(a *Account) []byte {
		if a == nil {
			return nil
		}
		abi, _ := a.ABI()
		return abi
	})
}

// ABIHash returns the abi hash, the empty code hash for absent accounts.
func (s *State) ABIHash(addr cita.Address) (cita.Bytes32, error) {
	return ensureCached(s, addr, requireNone, func(a *Account) cita.Bytes32 {
		if a == nil {
			return cita.EmptyCodeHash
		}
		return a.ABIHash()
	})
}

// ABISize returns the abi size if it's known.
func (s *State) ABISize(addr cita.Address) (int, bool, error) {
	type result struct {
		size int
		ok   bool
	}
	r, err := ensureCached(s, addr, requireABISize, func(a *Account) result {
		if a == nil {
			return result{}
		}
		size, ok := a.ABISize()
		return result{size, ok}
	})
	return r.size, r.ok, err
}

// AddBalance credits the account. A zero credit only touches an existing account.
func (s *State) AddBalance(addr cita.Address, incr *uint256.Int) error {
	if !incr.IsZero() {
		a, err := s.Require(addr, false, false)
		if err != nil {
			return err
		}
		a.AddBalance(incr)
		return nil
	}
	exists, err := s.Exists(addr)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.Require(addr, false, false)
	}
	return err
}

// SubBalance debits the account. It fails with ErrInsufficientBalance rather than wrapping.
func (s *State) SubBalance(addr cita.Address, decr *uint256.Int) error {
	bal, err := s.Balance(addr)
	if err != nil {
		return err
	}
	if bal.Lt(decr) {
		return ErrInsufficientBalance
	}
	exists, err := s.Exists(addr)
	if err != nil {
		return err
	}
	if !decr.IsZero() || !exists {
		a, err := s.Require(addr, false, false)
		if err != nil {
			return err
		}
		a.SubBalance(decr)
	}
	return nil
}

// TransferBalance moves by from one account to another.
func (s *State) TransferBalance(from, to cita.Address, by *uint256.Int) error {
	if err := s.SubBalance(from, by); err != nil {
		return err
	}
	return s.AddBalance(to, by)
}

// IncNonce increments the nonce by one.
func (s *State) IncNonce(addr cita.Address) error {
	a, err := s.Require(addr, false, false)
	if err != nil {
		return err
	}
	a.IncNonce()
	return nil
}

// SetStorage writes the storage value. Writing the current value is a no-op.
func (s *State) SetStorage(addr cita.Address, key, value cita.Bytes32) error {
	cur, err := s.StorageAt(addr, key)
	if err != nil {
		return err
	}
	if cur == value {
		return nil
	}
	a, err := s.Require(addr, false, false)
	if err != nil {
		return err
	}
	a.SetStorage(key, value)
	return nil
}

func (s *State) requireContract(addr cita.Address, withCode, withABI bool) (*Account, error) {
	return s.RequireOrFrom(addr, withCode, withABI,
		func() *Account { return NewContractAccount(new(uint256.Int), &s.startNonce) },
		nil)
}

// InitCode sets the code of a newly created contract.
func (s *State) InitCode(addr cita.Address, code []byte) error {
	a, err := s.requireContract(addr, true, false)
	if err != nil {
		return err
	}
	return wrapErr(a.InitCode(code))
}

// ResetCode overwrites the code.
func (s *State) ResetCode(addr cita.Address, code []byte) error {
	a, err := s.requireContract(addr, true, false)
	if err != nil {
		return err
	}
	a.ResetCode(code)
	return nil
}

// InitABI sets the abi of an account without one.
func (s *State) InitABI(addr cita.Address, abi []byte) error {
	a, err := s.requireContract(addr, false, true)
	if err != nil {
		return err
	}
	return wrapErr(a.InitABI(abi))
}

// ResetABI overwrites the abi.
func (s *State) ResetABI(addr cita.Address, abi []byte) error {
	a, err := s.requireContract(addr, false, true)
	if err != nil {
		return err
	}
	a.ResetABI(abi)
	return nil
}

// Require returns the cached account for mutation, creating a basic account when absent.
// The entry becomes dirty, so the account is written on commit even if null.
func (s *State) Require(addr cita.Address, withCode, withABI bool) (*Account, error) {
	return s.RequireOrFrom(addr, withCode, withABI,
		func() *Account { return NewBasicAccount(new(uint256.Int), &s.startNonce) },
		nil)
}

// RequireOrFrom is the single mutation path. It loads the account when missing, records the
// pre-mutation snapshot into the open frame, then applies def if the account is absent or
// notDefault if it exists, and marks the entry dirty.
func (s *State) RequireOrFrom(
	addr cita.Address,
	withCode, withABI bool,
	def func() *Account,
	notDefault func(*Account),
) (*Account, error) {
	if _, ok := s.cache[addr]; !ok {
		a, err := s.loadAccount(addr)
		if err != nil {
			return nil, err
		}
		s.insertCache(addr, newCleanEntry(a))
	}
	s.noteCache(addr)

	e := s.cache[addr]
	if e.account != nil {
		if notDefault != nil {
			notDefault(e.account)
		}
	} else {
		e.account = def()
	}
	e.state = entryDirty

	if e.account == nil {
		panic("state: required account must exist")
	}
	if withCode {
		if err := s.updateAccountCache(requireCode, e.account); err != nil {
			return nil, err
		}
	}
	if withABI {
		if err := s.updateAccountCache(requireABI, e.account); err != nil {
			return nil, err
		}
	}
	return e.account, nil
}

// KillGarbage kills every touched account that exists and is null.
func (s *State) KillGarbage(touched map[cita.Address]struct{}) {
	var toKill []cita.Address
	for addr := range touched {
		if e, ok := s.cache[addr]; ok && e.existsAndIsNull(&s.startNonce) {
			toKill = append(toKill, addr)
		}
	}
	for _, addr := range toKill {
		s.KillAccount(addr)
	}
}

// Commit writes all dirty entries into the tries and returns the new root.
// It panics if any checkpoint is open.
func (s *State) Commit() (cita.Bytes32, error) {
	if s.checkpoints.Depth() != 0 {
		panic("state: commit with open checkpoints")
	}
	start := time.Now()

	codes := s.codeStore.NewBatch()
	abis := s.abiStore.NewBatch()
	var n int
	for addr, e := range s.cache {
		if !e.isDirty() {
			continue
		}
		n++
		if a := e.account; a != nil {
			if !a.StorageIsClean() {
				trie, err := s.db.NewStorageTrie(cita.Keccak256(addr[:]), a.storageRoot)
				if err != nil {
					return cita.Bytes32{}, wrapErr(err)
				}
				if err := a.commitStorage(trie); err != nil {
					return cita.Bytes32{}, wrapErr(err)
				}
			}
			if err := a.code.commit(codes); err != nil {
				return cita.Bytes32{}, wrapErr(err)
			}
			if err := a.abi.commit(abis); err != nil {
				return cita.Bytes32{}, wrapErr(err)
			}
		}
	}
	if err := codes.Write(); err != nil {
		return cita.Bytes32{}, wrapErr(err)
	}
	if err := abis.Write(); err != nil {
		return cita.Bytes32{}, wrapErr(err)
	}

	for addr, e := range s.cache {
		if !e.isDirty() {
			continue
		}
		e.state = entryCommitted
		var data []byte
		if e.account != nil {
			data = e.account.Encode()
		}
		if err := s.trie.Update(addr[:], data); err != nil {
			return cita.Bytes32{}, wrapErr(err)
		}
	}
	root, err := s.trie.Commit()
	if err != nil {
		return cita.Bytes32{}, wrapErr(err)
	}
	s.root = root

	metricTrieCommits().Add(1)
	metrics.Since(metricCommitDuration(), start)
	logger.Debug("state committed", "root", root.AbbrevString(), "accounts", n)
	return root, nil
}

// Clear drops the entire local cache.
func (s *State) Clear() {
	clear(s.cache)
}
