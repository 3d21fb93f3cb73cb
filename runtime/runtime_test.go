// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/muxdb"
	"github.com/citahub/cita-executor/state"
	"github.com/citahub/cita-executor/tx"
	"github.com/citahub/cita-executor/vm"
	"github.com/citahub/cita-executor/xenv"
)

// Programs of the test VM, selected by the first code byte.
const (
	opDeploy     byte = iota + 1 // deploys the rest of the code
	opStore                      // stores keccak(data) at slot 1 and logs data
	opRevert                     // stores, then reverts
	opCall                       // calls the address following the opcode
	opStaticCall                 // static calls the address following the opcode, returns the call status and output
	opSuicide                    // self-destructs, refunding to the origin
	opRecurse                    // calls itself until depth 5, marking each depth in storage
	opCreate                     // creates a contract running the rest of the code as init code
	opCallValue                  // calls the address following the opcode with value 1, returns the call status
)

var programs = map[byte]vm.ExecFunc{
	opDeploy: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		return vm.NeedsReturn(params.Gas-1000, params.Code[1:], true), nil
	},
	opStore: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		if err := ext.SetStorage(b32(1), cita.Keccak256(params.Data)); err != nil {
			return vm.GasLeft{}, err
		}
		if err := ext.Log([]cita.Bytes32{b32(0xab)}, params.Data); err != nil {
			return vm.GasLeft{}, err
		}
		return vm.NeedsReturn(params.Gas-500, []byte("ok"), true), nil
	},
	opRevert: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		if err := ext.SetStorage(b32(1), b32(1)); err != nil {
			return vm.GasLeft{}, err
		}
		return vm.NeedsReturn(params.Gas-100, []byte("no"), false), nil
	},
	opCall: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		target := cita.BytesToAddress(params.Code[1:21])
		gas := params.Gas / 2
		r := ext.Call(gas, params.Address, target, nil, params.Data, target, vm.CallTypeCall)
		if r.Status != vm.CallSucceeded {
			return vm.GasLeft{}, vm.ErrOutOfGas
		}
		return vm.NeedsReturn(params.Gas-gas+r.GasLeft, r.Data, true), nil
	},
	opStaticCall: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		target := cita.BytesToAddress(params.Code[1:21])
		gas := params.Gas / 2
		r := ext.Call(gas, params.Address, target, nil, params.Data, target, vm.CallTypeStaticCall)
		return vm.NeedsReturn(params.Gas-gas, append([]byte{byte(r.Status)}, r.Data...), true), nil
	},
	opCallValue: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		target := cita.BytesToAddress(params.Code[1:21])
		gas := params.Gas / 2
		r := ext.Call(gas, params.Address, target, uint256.NewInt(1), params.Data, target, vm.CallTypeCall)
		return vm.NeedsReturn(params.Gas-gas+r.GasLeft, []byte{byte(r.Status)}, true), nil
	},
	opSuicide: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		if err := ext.Suicide(params.Origin); err != nil {
			return vm.GasLeft{}, err
		}
		return vm.Known(params.Gas - 1000), nil
	},
	opRecurse: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		if err := ext.SetStorage(b32(uint64(ext.Depth())), b32(1)); err != nil {
			return vm.GasLeft{}, err
		}
		if ext.Depth() >= 5 {
			return vm.Known(params.Gas), nil
		}
		r := ext.Call(params.Gas-100, params.Address, params.Address, nil, nil, params.Address, vm.CallTypeCall)
		if r.Status != vm.CallSucceeded {
			return vm.GasLeft{}, vm.ErrOutOfGas
		}
		return vm.Known(r.GasLeft), nil
	},
	opCreate: func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		gas := params.Gas / 2
		r := ext.Create(gas, nil, params.Code[1:])
		if r.Status != vm.CreateSucceeded {
			return vm.NeedsReturn(params.Gas-gas, []byte{byte(r.Status)}, true), nil
		}
		return vm.NeedsReturn(params.Gas-gas+r.GasLeft, r.Address.Bytes(), true), nil
	},
}

var testVM = vm.FactoryFunc(func(uint64) vm.VM {
	return vm.ExecFunc(func(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
		program, ok := programs[params.Code[0]]
		if !ok {
			return vm.GasLeft{}, &vm.BadInstructionError{Instruction: params.Code[0]}
		}
		return program(params, ext)
	})
})

func b32(v uint64) cita.Bytes32 {
	return cita.Uint256ToBytes32(uint256.NewInt(v))
}

type account struct {
	pk   *ecdsa.PrivateKey
	addr cita.Address
}

func newAccount(t *testing.T) *account {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &account{pk, cita.Address(crypto.PubkeyToAddress(pk.PublicKey))}
}

func (a *account) sign(b *tx.Builder) *tx.Transaction {
	return tx.MustSign(b.Build(), a.pk)
}

type testChain struct {
	t      *testing.T
	st     *state.State
	env    *xenv.EnvInfo
	config *Config
	deps   Deps
}

func newTestChain(t *testing.T) *testChain {
	db := muxdb.NewMem()
	t.Cleanup(func() { db.Close() })
	st, err := state.New(db, cita.Bytes32{})
	require.NoError(t, err)
	return &testChain{
		t:  t,
		st: st,
		env: &xenv.EnvInfo{
			Number:          1,
			Author:          cita.BytesToAddress([]byte("author")),
			GasLimit:        10_000_000,
			AccountGasLimit: 10_000_000,
		},
		config: DefaultConfig(),
		deps:   Deps{VMFactory: testVM},
	}
}

func (c *testChain) transact(trx *tx.Transaction, opts TransactOptions) (*Executed, error) {
	return New(c.st, c.env, c.config, c.deps).Transact(trx, opts)
}

func (c *testChain) mustTransact(trx *tx.Transaction, opts TransactOptions) *Executed {
	executed, err := c.transact(trx, opts)
	require.NoError(c.t, err)
	return executed
}

func (c *testChain) deploy(addr cita.Address, code []byte) {
	c.st.NewContract(addr, new(uint256.Int), new(uint256.Int))
	require.NoError(c.t, c.st.InitCode(addr, code))
}

func (c *testChain) storage(addr cita.Address, key cita.Bytes32) cita.Bytes32 {
	v, err := c.st.StorageAt(addr, key)
	require.NoError(c.t, err)
	return v
}

func (c *testChain) balance(addr cita.Address) uint64 {
	v, err := c.st.Balance(addr)
	require.NoError(c.t, err)
	return v.Uint64()
}

func executionError(t *testing.T, err error) *ExecutionError {
	ee, ok := AsExecutionError(err)
	require.True(t, ok, "%v", err)
	return ee
}

func TestCreateAndCall(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(100000).Data([]byte{opDeploy, opStore})), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, uint64(0), executed.AccountNonce.Uint64())
	// 53000 base, 1000 by the constructor, 200 for the deployed byte
	assert.Equal(t, uint64(54200), executed.GasUsed)
	assert.Equal(t, executed.GasUsed, executed.CumulativeGasUsed)

	contract := cita.CreateContractAddress(alice.addr, uint256.NewInt(0))
	code, err := c.st.Code(contract)
	require.NoError(t, err)
	assert.Equal(t, []byte{opStore}, code)

	nonce, err := c.st.Nonce(alice.addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce.Uint64())

	data := []byte("hello")
	executed = c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&contract).Data(data)), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, uint64(1), executed.AccountNonce.Uint64())
	assert.Equal(t, uint64(21500), executed.GasUsed)
	assert.Equal(t, []byte("ok"), executed.Output)
	require.Len(t, executed.Logs, 1)
	assert.Equal(t, contract, executed.Logs[0].Address)
	assert.Equal(t, []cita.Bytes32{b32(0xab)}, executed.Logs[0].Topics)
	assert.Equal(t, data, executed.Logs[0].Data)
	assert.Equal(t, cita.Keccak256(data), c.storage(contract, b32(1)))
}

func TestNonceIncreasesOnRejection(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)

	_, err := c.transact(alice.sign(new(tx.Builder).Gas(100)), TransactOptions{})
	assert.Equal(t, KindNotEnoughBaseGas, executionError(t, err).Kind)

	nonce, err := c.st.Nonce(alice.addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce.Uint64())
}

func TestNestedCreate(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	factory := cita.BytesToAddress([]byte("factory"))
	c.deploy(factory, []byte{opCreate, opDeploy, opStore})

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(100000).To(&factory)), TransactOptions{Tracing: true})
	assert.Nil(t, executed.Exception)

	child := cita.CreateContractAddress(factory, uint256.NewInt(0))
	assert.Equal(t, []cita.Address{child}, executed.ContractsCreated)
	assert.Equal(t, child.Bytes(), executed.Output)

	code, err := c.st.Code(child)
	require.NoError(t, err)
	assert.Equal(t, []byte{opStore}, code)

	nonce, err := c.st.Nonce(factory)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce.Uint64())

	require.Len(t, executed.Trace, 2)
	assert.Equal(t, TraceCreate, executed.Trace[1].Type)
	assert.Equal(t, []int{0}, executed.Trace[1].TraceAddress)
}

func TestRevert(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	contract := cita.BytesToAddress([]byte("contract"))
	c.deploy(contract, []byte{opRevert})

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&contract)), TransactOptions{})
	assert.Equal(t, vm.ErrReverted, executed.Exception)
	assert.Equal(t, []byte("no"), executed.Output)
	assert.Equal(t, uint64(21100), executed.GasUsed)
	assert.Equal(t, cita.Bytes32{}, c.storage(contract, b32(1)))
}

func TestException(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	contract := cita.BytesToAddress([]byte("contract"))
	c.deploy(contract, []byte{0xff})

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&contract)), TransactOptions{Tracing: true})
	assert.IsType(t, &vm.BadInstructionError{}, executed.Exception)
	assert.Equal(t, uint64(50000), executed.GasUsed)
	require.Len(t, executed.Trace, 1)
	assert.NotEmpty(t, executed.Trace[0].Error)
}

func TestNestedCallTrace(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	var (
		a = cita.BytesToAddress([]byte("a"))
		b = cita.BytesToAddress([]byte("b"))
	)
	c.deploy(b, []byte{opStore})
	c.deploy(a, append([]byte{opCall}, b.Bytes()...))

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&a).Data([]byte("x"))),
		TransactOptions{Tracing: true, VMTracing: true})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, []byte("ok"), executed.Output)
	assert.Equal(t, cita.Keccak256([]byte("x")), c.storage(b, b32(1)))
	require.Len(t, executed.Logs, 1)
	assert.Equal(t, b, executed.Logs[0].Address)

	require.Len(t, executed.Trace, 2)
	assert.Equal(t, a, executed.Trace[0].To)
	assert.Equal(t, 1, executed.Trace[0].Subtraces)
	assert.Empty(t, executed.Trace[0].TraceAddress)
	assert.Equal(t, b, executed.Trace[1].To)
	assert.Equal(t, a, executed.Trace[1].From)
	assert.Equal(t, []int{0}, executed.Trace[1].TraceAddress)

	require.NotNil(t, executed.VMTrace)
	require.Len(t, executed.VMTrace.Subs, 1)
	assert.Equal(t, 1, executed.VMTrace.Subs[0].Depth)
	require.Len(t, executed.VMTrace.Subs[0].Subs, 1)
	assert.Equal(t, cita.Keccak256([]byte{opStore}), executed.VMTrace.Subs[0].Subs[0].CodeHash)
}

func TestStaticCall(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	var (
		a = cita.BytesToAddress([]byte("a"))
		b = cita.BytesToAddress([]byte("b"))
	)
	c.deploy(b, []byte{opStore})
	c.deploy(a, append([]byte{opStaticCall}, b.Bytes()...))

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&a)), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, []byte{byte(vm.CallFailed)}, executed.Output)
	assert.Equal(t, cita.Bytes32{}, c.storage(b, b32(1)))
	assert.Empty(t, executed.Logs)

	// value in static context
	e := New(c.st, c.env, c.config, c.deps)
	_, err := e.Call(&vm.ActionParams{
		CodeAddress: b,
		Address:     b,
		Sender:      alice.addr,
		Gas:         1000,
		Value:       vm.Transfer(uint256.NewInt(1)),
		CallType:    vm.CallTypeStaticCall,
	}, state.NewSubstate(), NoopTracer{}, NoopVMTracer{})
	assert.Equal(t, vm.ErrMutableCallInStaticContext, err)
}

func (c *testChain) nonce(addr cita.Address) uint64 {
	v, err := c.st.Nonce(addr)
	require.NoError(c.t, err)
	return v.Uint64()
}

func TestValueCallInStaticFrame(t *testing.T) {
	c := newTestChain(t)
	c.config.EconomicalModel = cita.Charge
	alice := newAccount(t)
	var (
		a = cita.BytesToAddress([]byte("a"))
		b = cita.BytesToAddress([]byte("b"))
		v = cita.BytesToAddress([]byte("v"))
	)
	c.deploy(b, []byte{opStore})
	c.deploy(v, append([]byte{opCallValue}, b.Bytes()...))
	c.deploy(a, append([]byte{opStaticCall}, v.Bytes()...))
	require.NoError(t, c.st.AddBalance(v, uint256.NewInt(10)))

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&a)), TransactOptions{})
	assert.Nil(t, executed.Exception)
	// v runs fine, its value call from the static frame does not
	assert.Equal(t, []byte{byte(vm.CallSucceeded), byte(vm.CallFailed)}, executed.Output)

	assert.Equal(t, uint64(10), c.balance(v))
	assert.Equal(t, uint64(0), c.balance(b))
	assert.Equal(t, uint64(0), c.nonce(v))
	assert.Equal(t, cita.Bytes32{}, c.storage(b, b32(1)))

	// the same call made directly in a static frame
	e := New(c.st, c.env, c.config, c.deps).fromParent(0, true)
	_, err := e.Call(&vm.ActionParams{
		CodeAddress: b,
		Address:     b,
		Sender:      v,
		Gas:         1000,
		Value:       vm.Transfer(uint256.NewInt(1)),
		CallType:    vm.CallTypeCall,
	}, state.NewSubstate(), NoopTracer{}, NoopVMTracer{})
	assert.Equal(t, vm.ErrMutableCallInStaticContext, err)
	assert.Equal(t, uint64(10), c.balance(v))
	assert.Equal(t, uint64(0), c.balance(b))
}

func TestCreateInStaticFrame(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	var (
		a       = cita.BytesToAddress([]byte("a"))
		factory = cita.BytesToAddress([]byte("factory"))
	)
	c.deploy(factory, []byte{opCreate, opDeploy, opStore})
	c.deploy(a, append([]byte{opStaticCall}, factory.Bytes()...))

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(100000).To(&a)), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, []byte{byte(vm.CallSucceeded), byte(vm.CreateFailedInStaticCall)}, executed.Output)
	assert.Empty(t, executed.ContractsCreated)

	assert.Equal(t, uint64(0), c.nonce(factory))
	exists, err := c.st.Exists(cita.CreateContractAddress(factory, uint256.NewInt(0)))
	require.NoError(t, err)
	assert.False(t, exists)

	// directly in a static frame
	child := cita.BytesToAddress([]byte("child"))
	e := New(c.st, c.env, c.config, c.deps).fromParent(0, true)
	_, err = e.Create(&vm.ActionParams{
		CodeAddress: child,
		Address:     child,
		Sender:      factory,
		Gas:         10000,
		Value:       vm.Transfer(new(uint256.Int)),
		Code:        []byte{opDeploy, opStore},
		CallType:    vm.CallTypeNone,
	}, state.NewSubstate(), NoopTracer{}, NoopVMTracer{})
	assert.Equal(t, vm.ErrMutableCallInStaticContext, err)
	exists, err = c.st.Exists(child)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRevertedValueTransfer(t *testing.T) {
	c := newTestChain(t)
	c.config.EconomicalModel = cita.Charge
	alice := newAccount(t)
	var (
		r = cita.BytesToAddress([]byte("r"))
		v = cita.BytesToAddress([]byte("v"))
	)
	c.deploy(r, []byte{opRevert})
	c.deploy(v, append([]byte{opCallValue}, r.Bytes()...))
	require.NoError(t, c.st.AddBalance(v, uint256.NewInt(10)))

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&v)), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, []byte{byte(vm.CallReverted)}, executed.Output)

	// the transfer went back with the reverted frame
	assert.Equal(t, uint64(10), c.balance(v))
	assert.Equal(t, uint64(0), c.balance(r))
	assert.Equal(t, cita.Bytes32{}, c.storage(r, b32(1)))
}

func TestSuicide(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	contract := cita.BytesToAddress([]byte("contract"))
	c.deploy(contract, []byte{opSuicide})

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&contract)), TransactOptions{Tracing: true})
	assert.Nil(t, executed.Exception)
	// half of the 22000 used
	assert.Equal(t, uint64(11000), executed.Refunded)
	assert.Equal(t, uint64(11000), executed.GasUsed)

	exists, err := c.st.Exists(contract)
	require.NoError(t, err)
	assert.False(t, exists)

	require.Len(t, executed.Trace, 2)
	assert.Equal(t, TraceSuicide, executed.Trace[1].Type)
	assert.Equal(t, alice.addr, executed.Trace[1].To)
}

func TestDepthHandOff(t *testing.T) {
	c := newTestChain(t)
	c.config.StackSize = 2 * cita.StackSizePerDepth
	require.Equal(t, 2, c.config.depthThreshold())

	alice := newAccount(t)
	contract := cita.BytesToAddress([]byte("contract"))
	c.deploy(contract, []byte{opRecurse})

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(100000).To(&contract)), TransactOptions{Tracing: true})
	assert.Nil(t, executed.Exception)
	for depth := uint64(0); depth <= 5; depth++ {
		assert.Equal(t, b32(1), c.storage(contract, b32(depth)), "depth %d", depth)
	}
	assert.Len(t, executed.Trace, 6)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, executed.Trace[5].TraceAddress)
}

func TestBuiltin(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	to := cita.IdentityAddress

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(30000).To(&to).Data([]byte("abc"))), TransactOptions{Tracing: true})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, []byte("abc"), executed.Output)
	assert.Equal(t, uint64(21000+15+3), executed.GasUsed)
	require.Len(t, executed.Trace, 1)
	assert.Equal(t, uint64(18), executed.Trace[0].GasUsed)

	executed = c.mustTransact(alice.sign(new(tx.Builder).Gas(21010).To(&to).Data([]byte("abc"))), TransactOptions{})
	assert.Equal(t, vm.ErrOutOfGas, executed.Exception)
	assert.Equal(t, uint64(21010), executed.GasUsed)
}

func TestShouldRevert(t *testing.T) {
	applied := &vm.FinalizationResult{ApplyState: true}
	assert.False(t, shouldRevert(applied, nil))
	assert.True(t, shouldRevert(&vm.FinalizationResult{}, nil))

	for _, err := range []error{
		vm.ErrOutOfGas,
		&vm.BadJumpDestinationError{},
		&vm.BadInstructionError{},
		&vm.StackUnderflowError{},
		&vm.OutOfStackError{},
		vm.ErrMutableCallInStaticContext,
		vm.ErrOutOfBounds,
		vm.ErrReverted,
	} {
		assert.True(t, shouldRevert(nil, err), "%v", err)
		assert.Equal(t, err, normalizeVMError(err))
	}

	internal := &vm.InternalError{Msg: "boom"}
	assert.False(t, shouldRevert(nil, internal))
	assert.True(t, vm.IsInternal(normalizeVMError(assert.AnError)))
}
