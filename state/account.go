// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"maps"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/kv"
	"github.com/citahub/cita-executor/muxdb"
)

const storageCacheItems = 8192

// accountRLP is the consensus representation of an account, stored in the accounts trie.
type accountRLP struct {
	Nonce       *uint256.Int
	Balance     *uint256.Int
	StorageRoot cita.Bytes32
	CodeHash    cita.Bytes32
	ABIHash     cita.Bytes32
}

// blob is a content addressed byte sequence attached to an account, code or abi.
type blob struct {
	hash  cita.Bytes32
	size  int // -1 when unknown
	data  []byte
	dirty bool
}

func emptyBlob() blob {
	return blob{hash: cita.EmptyCodeHash}
}

func (b *blob) set(data []byte) {
	b.hash = cita.Keccak256(data)
	b.data = data
	b.size = len(data)
	b.dirty = true
}

// cached returns whether data is loaded, or nothing needs loading.
func (b *blob) cached() bool {
	return len(b.data) > 0 || b.hash == cita.EmptyCodeHash
}

func (b *blob) load(store kv.Getter) error {
	if b.cached() {
		return nil
	}
	data, err := store.Get(b.hash[:])
	if err != nil {
		return err
	}
	b.data = data
	b.size = len(data)
	return nil
}

func (b *blob) commit(store kv.Putter) error {
	if !b.dirty {
		return nil
	}
	if len(b.data) > 0 {
		if err := store.Put(b.hash[:], b.data); err != nil {
			return err
		}
	}
	b.size = len(b.data)
	b.dirty = false
	return nil
}

// Account is the in-memory view of one account.
// Storage writes are kept in storageChanges until commit, reads are kept in storageCache.
type Account struct {
	nonce          uint256.Int
	balance        uint256.Int
	storageRoot    cita.Bytes32
	storageCache   *lru.BasicLRU[cita.Bytes32, cita.Bytes32]
	storageChanges map[cita.Bytes32]cita.Bytes32
	code           blob
	abi            blob
}

func newStorageCache() *lru.BasicLRU[cita.Bytes32, cita.Bytes32] {
	c := lru.NewBasicLRU[cita.Bytes32, cita.Bytes32](storageCacheItems)
	return &c
}

// NewBasicAccount creates a plain account whose code is known to be empty.
func NewBasicAccount(balance, nonce *uint256.Int) *Account {
	a := &Account{
		storageRoot:    cita.EmptyRoot,
		storageCache:   newStorageCache(),
		storageChanges: make(map[cita.Bytes32]cita.Bytes32),
		code:           emptyBlob(),
		abi:            emptyBlob(),
	}
	a.nonce.Set(nonce)
	a.balance.Set(balance)
	return a
}

// NewContractAccount creates an account ready to receive its code.
func NewContractAccount(balance, nonce *uint256.Int) *Account {
	a := NewBasicAccount(balance, nonce)
	a.code.size = -1
	a.abi.size = -1
	return a
}

// DecodeAccount decodes the trie record of an account.
func DecodeAccount(data []byte) (*Account, error) {
	var r accountRLP
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return nil, errors.Wrap(err, "decode account")
	}
	return &Account{
		nonce:          *r.Nonce,
		balance:        *r.Balance,
		storageRoot:    r.StorageRoot,
		storageCache:   newStorageCache(),
		storageChanges: make(map[cita.Bytes32]cita.Bytes32),
		code:           blob{hash: r.CodeHash, size: -1},
		abi:            blob{hash: r.ABIHash, size: -1},
	}, nil
}

// Encode returns the trie record of the account.
func (a *Account) Encode() []byte {
	data, err := rlp.EncodeToBytes(&accountRLP{
		Nonce:       &a.nonce,
		Balance:     &a.balance,
		StorageRoot: a.storageRoot,
		CodeHash:    a.code.hash,
		ABIHash:     a.abi.hash,
	})
	if err != nil {
		panic(err)
	}
	return data
}

// Nonce returns a copy of the nonce.
func (a *Account) Nonce() *uint256.Int { return a.nonce.Clone() }

// Balance returns a copy of the balance.
func (a *Account) Balance() *uint256.Int { return a.balance.Clone() }

func (a *Account) CodeHash() cita.Bytes32 { return a.code.hash }
func (a *Account) ABIHash() cita.Bytes32  { return a.abi.hash }

// Code returns the code if it's cached.
func (a *Account) Code() ([]byte, bool) {
	if !a.code.cached() {
		return nil, false
	}
	return a.code.data, true
}

// ABI returns the abi if it's cached.
func (a *Account) ABI() ([]byte, bool) {
	if !a.abi.cached() {
		return nil, false
	}
	return a.abi.data, true
}

// CodeSize returns the code size if it's known.
func (a *Account) CodeSize() (int, bool) {
	if a.code.size < 0 {
		return 0, false
	}
	return a.code.size, true
}

// ABISize returns the abi size if it's known.
func (a *Account) ABISize() (int, bool) {
	if a.abi.size < 0 {
		return 0, false
	}
	return a.abi.size, true
}

// IncNonce increments the nonce by one. Overflow is a fatal violation.
func (a *Account) IncNonce() {
	if _, overflow := a.nonce.AddOverflow(&a.nonce, uint256.NewInt(1)); overflow {
		panic("state: nonce overflow")
	}
}

// AddBalance adds x to the balance, saturating at the max value.
func (a *Account) AddBalance(x *uint256.Int) {
	if _, overflow := a.balance.AddOverflow(&a.balance, x); overflow {
		a.balance.SetAllOne()
	}
}

// SubBalance subtracts x from the balance, saturating at zero.
func (a *Account) SubBalance(x *uint256.Int) {
	if _, underflow := a.balance.SubOverflow(&a.balance, x); underflow {
		a.balance.Clear()
	}
}

// SetStorage caches the value. It reaches the trie on commit.
func (a *Account) SetStorage(key, value cita.Bytes32) {
	a.storageChanges[key] = value
}

// CachedStorageAt returns the value only if it is present in memory.
func (a *Account) CachedStorageAt(key cita.Bytes32) (cita.Bytes32, bool) {
	if v, ok := a.storageChanges[key]; ok {
		return v, true
	}
	return a.storageCache.Get(key)
}

// StorageAt returns the storage value for key, reading the storage trie on a cache miss.
func (a *Account) StorageAt(db *muxdb.MuxDB, addrHash cita.Bytes32, key cita.Bytes32) (cita.Bytes32, error) {
	if v, ok := a.CachedStorageAt(key); ok {
		return v, nil
	}
	trie, err := db.NewStorageTrie(addrHash, a.storageRoot)
	if err != nil {
		return cita.Bytes32{}, err
	}
	v, err := loadStorage(trie, key)
	if err != nil {
		return cita.Bytes32{}, err
	}
	a.storageCache.Add(key, v)
	return v, nil
}

// InitCode sets the code of a newly created contract.
func (a *Account) InitCode(code []byte) error {
	if a.code.hash != cita.EmptyCodeHash {
		return errors.New("code already initialized")
	}
	a.code.set(code)
	return nil
}

// ResetCode overwrites the code unconditionally.
func (a *Account) ResetCode(code []byte) {
	a.code.set(code)
}

// InitABI sets the abi of an account without one.
func (a *Account) InitABI(abi []byte) error {
	if a.abi.hash != cita.EmptyCodeHash {
		return errors.New("abi already initialized")
	}
	a.abi.set(abi)
	return nil
}

// ResetABI overwrites the abi unconditionally.
func (a *Account) ResetABI(abi []byte) {
	a.abi.set(abi)
}

// StorageIsClean returns whether there are no pending storage writes.
func (a *Account) StorageIsClean() bool {
	return len(a.storageChanges) == 0
}

// StorageRoot returns the storage root, which is only meaningful without pending writes.
func (a *Account) StorageRoot() (cita.Bytes32, bool) {
	if !a.StorageIsClean() {
		return cita.Bytes32{}, false
	}
	return a.storageRoot, true
}

// StorageChanges returns the pending storage writes.
func (a *Account) StorageChanges() map[cita.Bytes32]cita.Bytes32 {
	return a.storageChanges
}

// IsNull returns whether the account has zero balance, the start nonce, no code and no abi.
func (a *Account) IsNull(startNonce *uint256.Int) bool {
	return a.balance.IsZero() &&
		a.nonce.Eq(startNonce) &&
		a.code.hash == cita.EmptyCodeHash &&
		a.abi.hash == cita.EmptyCodeHash
}

// IsEmpty returns whether the account is null and has empty storage.
// It panics if there are pending storage writes.
func (a *Account) IsEmpty(startNonce *uint256.Int) bool {
	if !a.StorageIsClean() {
		panic("state: IsEmpty called with pending storage writes")
	}
	return a.IsNull(startNonce) && a.storageRoot == cita.EmptyRoot
}

// IsBasic returns whether the account has no code.
func (a *Account) IsBasic() bool {
	return a.code.hash == cita.EmptyCodeHash
}

func (a *Account) commitStorage(trie *muxdb.Trie) error {
	for k, v := range a.storageChanges {
		if err := saveStorage(trie, k, v); err != nil {
			return err
		}
		a.storageCache.Add(k, v)
	}
	root, err := trie.Commit()
	if err != nil {
		return err
	}
	a.storageRoot = root
	clear(a.storageChanges)
	return nil
}

// cloneBasic copies the header fields and code, dropping storage.
func (a *Account) cloneBasic() *Account {
	return &Account{
		nonce:          a.nonce,
		balance:        a.balance,
		storageRoot:    a.storageRoot,
		storageCache:   newStorageCache(),
		storageChanges: make(map[cita.Bytes32]cita.Bytes32),
		code:           a.code,
		abi:            a.abi,
	}
}

// cloneDirty copies the account together with pending storage writes.
func (a *Account) cloneDirty() *Account {
	c := a.cloneBasic()
	c.storageChanges = maps.Clone(a.storageChanges)
	return c
}

// cloneAll copies the account including the storage read cache.
func (a *Account) cloneAll() *Account {
	c := a.cloneDirty()
	for _, k := range a.storageCache.Keys() {
		v, _ := a.storageCache.Peek(k)
		c.storageCache.Add(k, v)
	}
	return c
}

// overwriteWith adopts the nonce, balance, code and pending writes of other,
// while keeping the storage values already read into this account under the same root.
func (a *Account) overwriteWith(other *Account) {
	if a.storageRoot != other.storageRoot {
		// values read under another root are stale
		a.storageCache.Purge()
	}
	a.nonce = other.nonce
	a.balance = other.balance
	a.storageRoot = other.storageRoot
	a.code = other.code
	a.abi = other.abi
	for _, k := range other.storageCache.Keys() {
		v, _ := other.storageCache.Peek(k)
		a.storageCache.Add(k, v)
	}
	a.storageChanges = other.storageChanges
}

// loadStorage reads the value for key. Values are stored as rlp encoded integers without leading zeros.
func loadStorage(trie *muxdb.Trie, key cita.Bytes32) (cita.Bytes32, error) {
	data, err := trie.Get(key[:])
	if err != nil {
		return cita.Bytes32{}, err
	}
	if len(data) == 0 {
		return cita.Bytes32{}, nil
	}
	var v uint256.Int
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return cita.Bytes32{}, errors.Wrap(err, "decode storage value")
	}
	return cita.Uint256ToBytes32(&v), nil
}

// saveStorage writes the value for key. A zero value removes the key.
func saveStorage(trie *muxdb.Trie, key, value cita.Bytes32) error {
	if value.IsZero() {
		return trie.Update(key[:], nil)
	}
	data, err := rlp.EncodeToBytes(value.Uint256())
	if err != nil {
		return err
	}
	return trie.Update(key[:], data)
}
