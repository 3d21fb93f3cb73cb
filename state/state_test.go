// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/muxdb"
)

func newTestState(t *testing.T) (*State, *muxdb.MuxDB) {
	db := muxdb.NewMem()
	t.Cleanup(func() { db.Close() })
	st, err := New(db, cita.Bytes32{})
	require.NoError(t, err)
	return st, db
}

func reopen(t *testing.T, db *muxdb.MuxDB, root cita.Bytes32) *State {
	st, err := New(db, root)
	require.NoError(t, err)
	return st
}

func mustCommit(t *testing.T, st *State) cita.Bytes32 {
	root, err := st.Commit()
	require.NoError(t, err)
	return root
}

func b32(v uint64) cita.Bytes32 {
	return cita.Uint256ToBytes32(uint256.NewInt(v))
}

func TestNewInvalidRoot(t *testing.T) {
	db := muxdb.NewMem()
	defer db.Close()
	_, err := New(db, cita.Keccak256([]byte("missing")))
	assert.Error(t, err)
	assert.IsType(t, &Error{}, err)
	assert.Contains(t, err.Error(), "state: ")
}

func TestCreateEmpty(t *testing.T) {
	st, _ := newTestState(t)
	root := mustCommit(t, st)
	assert.Equal(t, "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421", root.String())
}

func TestEnsureCached(t *testing.T) {
	st, _ := newTestState(t)
	_, err := st.Require(cita.Address{}, false, false)
	require.NoError(t, err)
	root := mustCommit(t, st)
	assert.Equal(t, "0x530acecc6ec873396bb3e90b6578161f9688ed7eeeb93d6fba5684895a93b78a", root.String())
	assert.Equal(t, root, st.Root())
}

func TestCodeFromDatabase(t *testing.T) {
	var a cita.Address
	st, db := newTestState(t)

	_, err := st.RequireOrFrom(a, false, false,
		func() *Account { return NewContractAccount(uint256.NewInt(42), new(uint256.Int)) },
		nil)
	require.NoError(t, err)
	require.NoError(t, st.InitCode(a, []byte{1, 2, 3}))

	code, err := st.Code(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, code)

	root := mustCommit(t, st)
	code, err = st.Code(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, code)

	st = reopen(t, db, root)
	code, err = st.Code(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, code)
	size, ok, err := st.CodeSize(a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, size)
	hash, err := st.CodeHash(a)
	require.NoError(t, err)
	assert.Equal(t, cita.Keccak256([]byte{1, 2, 3}), hash)
}

func TestABIFromDatabase(t *testing.T) {
	var a cita.Address
	st, db := newTestState(t)

	_, err := st.RequireOrFrom(a, false, false,
		func() *Account { return NewContractAccount(uint256.NewInt(42), new(uint256.Int)) },
		nil)
	require.NoError(t, err)
	require.NoError(t, st.InitABI(a, []byte{1, 2, 3}))
	abi, err := st.ABI(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, abi)

	root := mustCommit(t, st)
	st = reopen(t, db, root)

	size, ok, err := st.ABISize(a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, size)
	abi, err = st.ABI(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, abi)
	hash, err := st.ABIHash(a)
	require.NoError(t, err)
	assert.Equal(t, cita.Keccak256([]byte{1, 2, 3}), hash)
}

func TestStorageAtFromDatabase(t *testing.T) {
	var a cita.Address
	st, db := newTestState(t)
	require.NoError(t, st.SetStorage(a, b32(1), b32(69)))
	root := mustCommit(t, st)

	st = reopen(t, db, root)
	v, err := st.StorageAt(a, b32(1))
	require.NoError(t, err)
	assert.Equal(t, b32(69), v)

	sroot, ok, err := st.StorageRoot(a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, cita.EmptyRoot, sroot)
}

func TestStorageAtAbsent(t *testing.T) {
	st, _ := newTestState(t)
	a := cita.BytesToAddress([]byte{1})

	v, err := st.StorageAt(a, b32(1))
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	e, ok := st.cache[a]
	require.True(t, ok, "trie result is cached")
	assert.Nil(t, e.account)
	assert.False(t, e.isDirty())

	mustCommit(t, st)
	exists, err := st.Exists(a)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSetStorageUnchanged(t *testing.T) {
	st, _ := newTestState(t)
	a := cita.BytesToAddress([]byte{1})

	st.Checkpoint()
	require.NoError(t, st.SetStorage(a, b32(1), cita.Bytes32{}))
	assert.False(t, st.cache[a].isDirty(), "writing the current value is a no-op")
	assert.False(t, st.checkpoints.Recorded(a))
	st.DiscardCheckpoint()
}

func TestGetFromDatabase(t *testing.T) {
	var a cita.Address
	st, db := newTestState(t)
	require.NoError(t, st.IncNonce(a))
	root := mustCommit(t, st)
	nonce, err := st.Nonce(a)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1), nonce)

	st = reopen(t, db, root)
	nonce, err = st.Nonce(a)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1), nonce)
}

func TestRemove(t *testing.T) {
	var a cita.Address
	st, _ := newTestState(t)

	exists, _ := st.Exists(a)
	assert.False(t, exists)
	notNull, _ := st.ExistsAndNotNull(a)
	assert.False(t, notNull)

	require.NoError(t, st.IncNonce(a))
	exists, _ = st.Exists(a)
	assert.True(t, exists)
	notNull, _ = st.ExistsAndNotNull(a)
	assert.True(t, notNull)
	nonce, _ := st.Nonce(a)
	assert.Equal(t, uint256.NewInt(1), nonce)

	st.KillAccount(a)
	exists, _ = st.Exists(a)
	assert.False(t, exists)
	notNull, _ = st.ExistsAndNotNull(a)
	assert.False(t, notNull)
	nonce, _ = st.Nonce(a)
	assert.Equal(t, uint256.NewInt(0), nonce)
}

func TestEmptyAccountIsNotCreated(t *testing.T) {
	var a cita.Address
	st, db := newTestState(t)
	_, err := st.Balance(a)
	require.NoError(t, err)
	root := mustCommit(t, st)

	st = reopen(t, db, root)
	exists, err := st.Exists(a)
	require.NoError(t, err)
	assert.False(t, exists)
	notNull, err := st.ExistsAndNotNull(a)
	require.NoError(t, err)
	assert.False(t, notNull)
}

func TestEmptyAccountExistsWhenCreationForced(t *testing.T) {
	var a cita.Address
	st, db := newTestState(t)
	_, err := st.Require(a, false, false)
	require.NoError(t, err)
	root := mustCommit(t, st)

	st = reopen(t, db, root)
	exists, err := st.Exists(a)
	require.NoError(t, err)
	assert.True(t, exists)
	notNull, err := st.ExistsAndNotNull(a)
	require.NoError(t, err)
	assert.False(t, notNull)
}

func TestRemoveFromDatabase(t *testing.T) {
	var a cita.Address
	st, db := newTestState(t)
	require.NoError(t, st.IncNonce(a))
	require.NoError(t, st.SetStorage(a, b32(1), b32(2)))
	root := mustCommit(t, st)

	st = reopen(t, db, root)
	exists, _ := st.Exists(a)
	assert.True(t, exists)
	v, _ := st.StorageAt(a, b32(1))
	assert.Equal(t, b32(2), v)

	st.KillAccount(a)
	root = mustCommit(t, st)
	exists, _ = st.Exists(a)
	assert.False(t, exists)

	st = reopen(t, db, root)
	exists, _ = st.Exists(a)
	assert.False(t, exists)
	nonce, _ := st.Nonce(a)
	assert.Equal(t, uint256.NewInt(0), nonce)
	v, _ = st.StorageAt(a, b32(1))
	assert.True(t, v.IsZero())
}

func TestAlterNonce(t *testing.T) {
	var a cita.Address
	st, _ := newTestState(t)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, st.IncNonce(a))
		nonce, _ := st.Nonce(a)
		assert.Equal(t, uint256.NewInt(i), nonce)
		if i >= 2 {
			mustCommit(t, st)
			nonce, _ = st.Nonce(a)
			assert.Equal(t, uint256.NewInt(i), nonce)
		}
	}
}

func TestStartNonce(t *testing.T) {
	var a cita.Address
	st, _ := newTestState(t)
	st.SetAccountStartNonce(uint256.NewInt(7))
	nonce, _ := st.Nonce(a)
	assert.Equal(t, uint256.NewInt(7), nonce)
	mustCommit(t, st)
	nonce, _ = st.Nonce(a)
	assert.Equal(t, uint256.NewInt(7), nonce)

	st.NewContract(a, uint256.NewInt(1), uint256.NewInt(1))
	nonce, _ = st.Nonce(a)
	assert.Equal(t, uint256.NewInt(8), nonce)
}

func TestBalance(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	b := cita.BytesToAddress([]byte{2})
	st, _ := newTestState(t)

	require.NoError(t, st.AddBalance(a, uint256.NewInt(100)))
	require.NoError(t, st.TransferBalance(a, b, uint256.NewInt(30)))
	bal, _ := st.Balance(a)
	assert.Equal(t, uint256.NewInt(70), bal)
	bal, _ = st.Balance(b)
	assert.Equal(t, uint256.NewInt(30), bal)

	err := st.SubBalance(b, uint256.NewInt(31))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	bal, _ = st.Balance(b)
	assert.Equal(t, uint256.NewInt(30), bal)

	// zero credit only touches existing accounts
	c := cita.BytesToAddress([]byte{3})
	require.NoError(t, st.AddBalance(c, new(uint256.Int)))
	exists, _ := st.Exists(c)
	assert.False(t, exists)

	// zero debit of a missing account creates it
	require.NoError(t, st.SubBalance(c, new(uint256.Int)))
	exists, _ = st.Exists(c)
	assert.True(t, exists)
}

func TestCheckpointBasic(t *testing.T) {
	var a cita.Address
	st, _ := newTestState(t)

	st.Checkpoint()
	require.NoError(t, st.IncNonce(a))
	nonce, _ := st.Nonce(a)
	assert.Equal(t, uint256.NewInt(1), nonce)
	st.DiscardCheckpoint()
	nonce, _ = st.Nonce(a)
	assert.Equal(t, uint256.NewInt(1), nonce)

	st.Checkpoint()
	require.NoError(t, st.IncNonce(a))
	nonce, _ = st.Nonce(a)
	assert.Equal(t, uint256.NewInt(2), nonce)
	st.RevertToCheckpoint()
	nonce, _ = st.Nonce(a)
	assert.Equal(t, uint256.NewInt(1), nonce)
}

func TestCheckpointNested(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	st, _ := newTestState(t)
	require.NoError(t, st.AddBalance(a, uint256.NewInt(1)))

	st.Checkpoint()
	require.NoError(t, st.AddBalance(a, uint256.NewInt(10)))
	st.Checkpoint()
	require.NoError(t, st.AddBalance(a, uint256.NewInt(100)))
	require.NoError(t, st.SetStorage(a, b32(1), b32(1)))
	st.DiscardCheckpoint()

	bal, _ := st.Balance(a)
	assert.Equal(t, uint256.NewInt(111), bal)

	st.RevertToCheckpoint()
	bal, _ = st.Balance(a)
	assert.Equal(t, uint256.NewInt(1), bal, "oldest original survives the merge")
	v, _ := st.StorageAt(a, b32(1))
	assert.True(t, v.IsZero())
	assert.Equal(t, 0, st.CheckpointDepth())
}

func TestCheckpointRevertCreated(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	st, _ := newTestState(t)

	st.Checkpoint()
	require.NoError(t, st.IncNonce(a))
	st.RevertToCheckpoint()
	_, ok := st.cache[a]
	assert.True(t, ok, "clean entry loaded before mutation is kept")
	exists, _ := st.Exists(a)
	assert.False(t, exists)

	st.Checkpoint()
	st.NewContract(a, uint256.NewInt(5), new(uint256.Int))
	st.RevertToCheckpoint()
	exists, _ = st.Exists(a)
	assert.False(t, exists)
}

func TestCheckpointRevertKill(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	st, _ := newTestState(t)
	require.NoError(t, st.AddBalance(a, uint256.NewInt(9)))
	mustCommit(t, st)

	st.Checkpoint()
	st.KillAccount(a)
	exists, _ := st.Exists(a)
	assert.False(t, exists)
	st.RevertToCheckpoint()

	bal, _ := st.Balance(a)
	assert.Equal(t, uint256.NewInt(9), bal)
}

func TestCheckpointRevertKeepsStorageReads(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	st, db := newTestState(t)
	require.NoError(t, st.SetStorage(a, b32(1), b32(5)))
	root := mustCommit(t, st)
	st = reopen(t, db, root)

	st.Checkpoint()
	require.NoError(t, st.IncNonce(a))
	_, err := st.StorageAt(a, b32(1))
	require.NoError(t, err)
	st.RevertToCheckpoint()

	v, ok := st.cache[a].account.CachedStorageAt(b32(1))
	assert.True(t, ok)
	assert.Equal(t, b32(5), v)
	nonce, _ := st.Nonce(a)
	assert.True(t, nonce.IsZero())
}

func TestCommitWithCheckpoint(t *testing.T) {
	st, _ := newTestState(t)
	st.Checkpoint()
	assert.Panics(t, func() { st.Commit() })
}

func TestExistsAndHasCodeOrNonce(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	st, _ := newTestState(t)

	has, _ := st.ExistsAndHasCodeOrNonce(a)
	assert.False(t, has)
	require.NoError(t, st.AddBalance(a, uint256.NewInt(1)))
	has, _ = st.ExistsAndHasCodeOrNonce(a)
	assert.False(t, has, "balance alone is no collision")
	require.NoError(t, st.InitCode(a, []byte{0x60}))
	has, _ = st.ExistsAndHasCodeOrNonce(a)
	assert.True(t, has)
}

func TestKillGarbage(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	b := cita.BytesToAddress([]byte{2})
	c := cita.BytesToAddress([]byte{3})
	st, db := newTestState(t)

	_, err := st.Require(a, false, false)
	require.NoError(t, err)
	require.NoError(t, st.AddBalance(b, uint256.NewInt(1)))
	_, err = st.Require(c, false, false)
	require.NoError(t, err)

	// c is null but untouched
	st.KillGarbage(map[cita.Address]struct{}{a: {}, b: {}})
	root := mustCommit(t, st)

	st = reopen(t, db, root)
	exists, _ := st.Exists(a)
	assert.False(t, exists)
	exists, _ = st.Exists(b)
	assert.True(t, exists)
	exists, _ = st.Exists(c)
	assert.True(t, exists)
}

func TestClear(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	st, _ := newTestState(t)
	require.NoError(t, st.AddBalance(a, uint256.NewInt(1)))
	st.Clear()
	exists, _ := st.Exists(a)
	assert.False(t, exists)
}

func TestSubstateAccrue(t *testing.T) {
	a := cita.BytesToAddress([]byte{1})
	b := cita.BytesToAddress([]byte{2})

	parent := NewSubstate()
	parent.Suicides[a] = struct{}{}
	parent.SStoreClearsCount.SetUint64(1)

	child := NewSubstate()
	child.Suicides[b] = struct{}{}
	child.Garbage[b] = struct{}{}
	child.ContractsCreated = append(child.ContractsCreated, b)
	child.SStoreClearsCount.SetUint64(2)

	parent.Accrue(child)
	assert.Len(t, parent.Suicides, 2)
	assert.Len(t, parent.Garbage, 1)
	assert.Equal(t, []cita.Address{b}, parent.ContractsCreated)
	assert.Equal(t, uint64(3), parent.SStoreClearsCount.Uint64())
}

// TestCheckpointRandom checks that reverting restores every value read before the checkpoint.
func TestCheckpointRandom(t *testing.T) {
	type op struct {
		Addr  uint8
		Kind  uint8
		Key   uint8
		Value uint16
	}
	addrs := make([]cita.Address, 4)
	for i := range addrs {
		addrs[i] = cita.BytesToAddress([]byte{byte(i + 1)})
	}

	type snapshot struct {
		balance *uint256.Int
		nonce   *uint256.Int
		exists  bool
		storage [4]cita.Bytes32
	}
	take := func(st *State) []snapshot {
		var snaps []snapshot
		for _, a := range addrs {
			var s snapshot
			s.balance, _ = st.Balance(a)
			s.nonce, _ = st.Nonce(a)
			s.exists, _ = st.Exists(a)
			for k := range s.storage {
				s.storage[k], _ = st.StorageAt(a, b32(uint64(k)))
			}
			snaps = append(snaps, s)
		}
		return snaps
	}
	apply := func(st *State, o op) {
		a := addrs[int(o.Addr)%len(addrs)]
		switch o.Kind % 5 {
		case 0:
			require.NoError(t, st.AddBalance(a, uint256.NewInt(uint64(o.Value))))
		case 1:
			require.NoError(t, st.IncNonce(a))
		case 2:
			require.NoError(t, st.SetStorage(a, b32(uint64(o.Key%4)), b32(uint64(o.Value))))
		case 3:
			st.KillAccount(a)
		case 4:
			st.NewContract(a, uint256.NewInt(uint64(o.Value)), new(uint256.Int))
		}
	}

	f := fuzz.New().NilChance(0).NumElements(1, 16)
	for range 50 {
		st, _ := newTestState(t)
		var pre, inner, outer []op
		f.Fuzz(&pre)
		f.Fuzz(&inner)
		f.Fuzz(&outer)

		for _, o := range pre {
			apply(st, o)
		}
		mustCommit(t, st)
		base := take(st)

		st.Checkpoint()
		for _, o := range outer {
			apply(st, o)
		}
		mid := take(st)

		st.Checkpoint()
		for _, o := range inner {
			apply(st, o)
		}
		st.RevertToCheckpoint()
		assert.Equal(t, mid, take(st))

		st.Checkpoint()
		for _, o := range inner {
			apply(st, o)
		}
		st.DiscardCheckpoint()
		st.RevertToCheckpoint()
		assert.Equal(t, base, take(st))
	}
}
