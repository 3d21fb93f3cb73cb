// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/native"
	"github.com/citahub/cita-executor/permission"
	"github.com/citahub/cita-executor/service"
	"github.com/citahub/cita-executor/tx"
	"github.com/citahub/cita-executor/vm"
)

func word(v uint64) []byte {
	return b32(v).Bytes()
}

func concat(parts ...[]byte) (out []byte) {
	for _, p := range parts {
		out = append(out, p...)
	}
	return
}

func TestCharge(t *testing.T) {
	c := newTestChain(t)
	c.config.EconomicalModel = cita.Charge
	alice := newAccount(t)
	bob := cita.BytesToAddress([]byte("bob"))
	require.NoError(t, c.st.AddBalance(alice.addr, uint256.NewInt(1_000_000)))

	executed := c.mustTransact(alice.sign(new(tx.Builder).
		Gas(30000).
		GasPrice(uint256.NewInt(2)).
		To(&bob).
		Value(uint256.NewInt(100))), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, uint64(21000), executed.GasUsed)

	assert.Equal(t, uint64(1_000_000-21000*2-100), c.balance(alice.addr))
	assert.Equal(t, uint64(100), c.balance(bob))
	assert.Equal(t, uint64(42000), c.balance(c.env.Author))
}

func TestChargeFeeBackPlatform(t *testing.T) {
	c := newTestChain(t)
	c.config.EconomicalModel = cita.Charge
	c.config.FeeBackPlatform = true
	c.config.ChainOwner = cita.BytesToAddress([]byte("owner"))
	alice := newAccount(t)
	require.NoError(t, c.st.AddBalance(alice.addr, uint256.NewInt(1_000_000)))

	bob := cita.BytesToAddress([]byte("bob"))
	c.mustTransact(alice.sign(new(tx.Builder).Gas(21000).GasPrice(uint256.NewInt(1)).To(&bob)), TransactOptions{})
	assert.Equal(t, uint64(21000), c.balance(c.config.ChainOwner))
	assert.Equal(t, uint64(0), c.balance(c.env.Author))
}

func TestChargeException(t *testing.T) {
	c := newTestChain(t)
	c.config.EconomicalModel = cita.Charge
	alice := newAccount(t)
	require.NoError(t, c.st.AddBalance(alice.addr, uint256.NewInt(1_000_000)))
	contract := cita.BytesToAddress([]byte("contract"))
	c.deploy(contract, []byte{0xff})

	executed := c.mustTransact(alice.sign(new(tx.Builder).
		Gas(30000).
		GasPrice(uint256.NewInt(1)).
		To(&contract).
		Value(uint256.NewInt(5))), TransactOptions{})
	assert.NotNil(t, executed.Exception)
	assert.Equal(t, uint64(30000), executed.GasUsed)
	// the value transfer is reverted, all gas is paid
	assert.Equal(t, uint64(1_000_000-30000), c.balance(alice.addr))
	assert.Equal(t, uint64(0), c.balance(contract))
}

func TestNotEnoughCash(t *testing.T) {
	c := newTestChain(t)
	c.config.EconomicalModel = cita.Charge
	alice := newAccount(t)
	require.NoError(t, c.st.AddBalance(alice.addr, uint256.NewInt(1000)))

	bob := cita.BytesToAddress([]byte("bob"))
	_, err := c.transact(alice.sign(new(tx.Builder).
		Gas(21000).
		GasPrice(uint256.NewInt(1)).
		To(&bob).
		Value(uint256.NewInt(5))), TransactOptions{})
	ee := executionError(t, err)
	assert.Equal(t, KindNotEnoughCash, ee.Kind)
	assert.Equal(t, "21005", ee.Required.String())
	assert.Equal(t, "1000", ee.Got.String())
	assert.Equal(t, tx.NotEnoughCash, ee.ReceiptError())
}

func TestBaseGas(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	bob := cita.BytesToAddress([]byte("bob"))

	_, err := c.transact(alice.sign(new(tx.Builder).Gas(20999).To(&bob)), TransactOptions{})
	ee := executionError(t, err)
	assert.Equal(t, KindNotEnoughBaseGas, ee.Kind)
	assert.Equal(t, "21000", ee.Required.String())
	assert.Equal(t, "20999", ee.Got.String())

	_, err = c.transact(alice.sign(new(tx.Builder).Gas(52999)), TransactOptions{})
	assert.Equal(t, "53000", executionError(t, err).Required.String())

	// data is charged from version 3
	_, err = c.transact(alice.sign(new(tx.Builder).Gas(21500).To(&bob).Data(make([]byte, 10)).Version(3)), TransactOptions{})
	assert.Equal(t, "21680", executionError(t, err).Required.String())

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(21680).To(&bob).Data(make([]byte, 10)).Version(3)), TransactOptions{})
	assert.Equal(t, uint64(21680), executed.GasUsed)
}

func TestStore(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	to := cita.StoreAddress

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(30000).To(&to).Data(make([]byte, 10))), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, uint64(23000), executed.GasUsed)

	_, err := c.transact(alice.sign(new(tx.Builder).Gas(22999).To(&to).Data(make([]byte, 10))), TransactOptions{})
	ee := executionError(t, err)
	assert.Equal(t, KindNotEnoughBaseGas, ee.Kind)
	assert.Equal(t, "23000", ee.Required.String())
}

func TestAbiStore(t *testing.T) {
	c := newTestChain(t)
	alice := newAccount(t)
	to := cita.AbiAddress
	contract := cita.BytesToAddress([]byte("contract"))
	abi := []byte(`[{"type":"function"}]`)
	data := concat(contract.Bytes(), abi)

	_, err := c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&to).Data(data)), TransactOptions{})
	assert.Equal(t, KindTransactionMalformed, executionError(t, err).Kind)

	c.deploy(contract, []byte{opStore})
	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&to).Data(data)), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, 21000+uint64(len(data))*cita.CreateDataGas, executed.GasUsed)

	got, err := c.st.ABI(contract)
	require.NoError(t, err)
	assert.Equal(t, abi, got)
}

func TestAmend(t *testing.T) {
	c := newTestChain(t)
	admin := newAccount(t)
	c.config.SuperAdmin = &admin.addr
	to := cita.AmendAddress
	contract := cita.BytesToAddress([]byte("contract"))
	c.deploy(contract, []byte{opStore})

	amend := func(op uint64, data []byte) *Executed {
		return c.mustTransact(admin.sign(new(tx.Builder).
			Gas(100000).
			To(&to).
			Value(uint256.NewInt(op)).
			Data(data)), TransactOptions{})
	}

	executed := amend(AmendKV, concat(contract.Bytes(), word(1), word(11), word(2), word(22)))
	assert.Nil(t, executed.Exception)
	assert.Equal(t, b32(11), c.storage(contract, b32(1)))
	assert.Equal(t, b32(22), c.storage(contract, b32(2)))

	executed = amend(AmendGetKV, concat(contract.Bytes(), word(2)))
	assert.Nil(t, executed.Exception)
	assert.Equal(t, word(22), executed.Output)

	executed = amend(AmendCode, concat(contract.Bytes(), []byte{opRevert}))
	assert.Nil(t, executed.Exception)
	code, err := c.st.Code(contract)
	require.NoError(t, err)
	assert.Equal(t, []byte{opRevert}, code)

	executed = amend(AmendABI, concat(contract.Bytes(), []byte("abi")))
	assert.Nil(t, executed.Exception)
	abi, err := c.st.ABI(contract)
	require.NoError(t, err)
	assert.Equal(t, []byte("abi"), abi)

	executed = amend(AmendBalance, concat(contract.Bytes(), word(777)))
	assert.Nil(t, executed.Exception)
	assert.Equal(t, uint64(777), c.balance(contract))
	amend(AmendBalance, concat(contract.Bytes(), word(7)))
	assert.Equal(t, uint64(7), c.balance(contract))

	// missing account is an internal error, rejecting the transaction
	_, err = c.transact(admin.sign(new(tx.Builder).
		Gas(100000).
		To(&to).
		Value(uint256.NewInt(AmendKV)).
		Data(concat(cita.BytesToAddress([]byte("nobody")).Bytes(), word(1), word(1)))), TransactOptions{})
	assert.Equal(t, KindInternal, executionError(t, err).Kind)

	// not the admin
	mallory := newAccount(t)
	_, err = c.transact(mallory.sign(new(tx.Builder).Gas(100000).To(&to).Value(uint256.NewInt(AmendKV))), TransactOptions{})
	assert.Equal(t, KindNoTransactionPermission, executionError(t, err).Kind)
}

func TestQuota(t *testing.T) {
	c := newTestChain(t)
	c.config.CheckOptions.Quota = true
	c.env.GasLimit = 100000
	c.env.GasUsed = 90000
	c.env.AccountGasLimit = 30000
	alice := newAccount(t)
	bob := cita.BytesToAddress([]byte("bob"))

	_, err := c.transact(alice.sign(new(tx.Builder).Gas(21000).To(&bob)), TransactOptions{})
	assert.Equal(t, KindBlockGasLimitReached, executionError(t, err).Kind)

	c.env.GasUsed = 0
	_, err = c.transact(alice.sign(new(tx.Builder).Gas(40000).To(&bob)), TransactOptions{})
	assert.Equal(t, KindAccountGasLimitReached, executionError(t, err).Kind)

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(21000).To(&bob)), TransactOptions{})
	assert.Equal(t, uint64(21000), executed.CumulativeGasUsed)
}

func TestPermissions(t *testing.T) {
	c := newTestChain(t)
	perms := permission.New()
	c.deps.Permissions = perms
	alice := newAccount(t)
	contract := cita.BytesToAddress([]byte("contract"))
	c.deploy(contract, []byte{opStore})
	call := []byte{1, 2, 3, 4}

	c.config.CheckOptions.SendTxPermission = true
	_, err := c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&contract)), TransactOptions{})
	assert.Equal(t, KindNoTransactionPermission, executionError(t, err).Kind)
	perms.Grant(alice.addr, permission.Resource{Contract: cita.SendTxResource})
	c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&contract)), TransactOptions{})

	c.config.CheckOptions.CreateContractPermission = true
	_, err = c.transact(alice.sign(new(tx.Builder).Gas(100000).Data([]byte{opDeploy, opStore})), TransactOptions{})
	assert.Equal(t, KindNoContractPermission, executionError(t, err).Kind)

	// through a group
	group := cita.BytesToAddress([]byte("group"))
	perms.AddMembers(group, alice.addr)
	perms.Grant(group, permission.Resource{Contract: cita.CreateContractResource})
	c.mustTransact(alice.sign(new(tx.Builder).Gas(100000).Data([]byte{opDeploy, opStore})), TransactOptions{})

	c.config.CheckOptions.CallPermission = true
	_, err = c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&contract).Data(call[:3])), TransactOptions{})
	assert.Equal(t, KindTransactionMalformed, executionError(t, err).Kind)

	_, err = c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&contract).Data(call)), TransactOptions{})
	assert.Equal(t, KindNoCallPermission, executionError(t, err).Kind)

	perms.Grant(alice.addr, permission.Resource{Contract: contract, Func: permission.SelectorOf(call)})
	c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&contract).Data(call)), TransactOptions{})

	// empty data needs no call permission
	c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&contract)), TransactOptions{})
}

func TestGroupManagementPermission(t *testing.T) {
	c := newTestChain(t)
	perms := permission.New()
	c.deps.Permissions = perms
	c.config.CheckOptions.CallPermission = true
	alice := newAccount(t)
	to := cita.GroupManagement
	fn := []byte{0xaa, 0xbb, 0xcc, 0xdd}

	_, err := c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&to).Data(fn)), TransactOptions{})
	assert.Equal(t, KindTransactionMalformed, executionError(t, err).Kind)

	// the origin group in the first parameter holds the function
	origin := cita.BytesToAddress([]byte("origin"))
	data := concat(fn, make([]byte, 12), origin.Bytes())
	perms.Grant(origin, permission.Resource{Contract: to, Func: permission.SelectorOf(fn)})
	_, err = c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&to).Data(data)), TransactOptions{})
	assert.Equal(t, KindNoCallPermission, executionError(t, err).Kind)

	perms.Grant(alice.addr, permission.Resource{Contract: to, Func: permission.SelectorOf(fn)})
	c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&to).Data(data)), TransactOptions{})
}

func TestNativeContract(t *testing.T) {
	c := newTestChain(t)
	c.deps.Natives = native.NewDefaultFactory()
	alice := newAccount(t)
	to := cita.NativeSimpleStorage

	selector := func(sig uint32) []byte {
		return []byte{byte(sig >> 24), byte(sig >> 16), byte(sig >> 8), byte(sig)}
	}

	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&to).Data(concat(selector(native.SigUintSet), word(42)))), TransactOptions{Tracing: true})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, uint64(21000+cita.NativeCallGas), executed.GasUsed)
	require.Len(t, executed.Trace, 1)

	executed = c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&to).Data(selector(native.SigUintGet))), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, word(42), executed.Output)

	executed = c.mustTransact(alice.sign(new(tx.Builder).Gas(21050).To(&to).Data(selector(native.SigUintGet))), TransactOptions{})
	assert.Equal(t, vm.ErrOutOfGas, executed.Exception)
}

type fakeInvoker struct {
	methods  []string
	requests []*service.Request
	resp     *service.Response
	err      error
}

func (f *fakeInvoker) Invoke(_ context.Context, _ *service.ConnectInfo, method string, req *service.Request) (*service.Response, error) {
	f.methods = append(f.methods, method)
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func TestServiceContract(t *testing.T) {
	c := newTestChain(t)
	var (
		registry = service.NewRegistry(nil)
		invoker  = &fakeInvoker{resp: &service.Response{GasLeft: 1000}}
		addr     = cita.GoContractMin
		goCreate = cita.GoContractAddress
	)
	c.deps.Services = registry
	c.deps.Invoker = invoker
	alice := newAccount(t)

	// not registered
	_, err := c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&goCreate).Data(addr.Bytes())), TransactOptions{})
	assert.Equal(t, KindInternal, executionError(t, err).Kind)

	registry.Register(addr, "127.0.0.1", 8080, 0)
	executed := c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&goCreate).Data(addr.Bytes())), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, []string{service.MethodInit}, invoker.methods)
	assert.Equal(t, addr, invoker.requests[0].Params.Address)

	cs, ok := registry.Find(addr, true)
	require.True(t, ok)
	assert.Equal(t, c.env.Number, cs.Height)

	topic := b32(0xcc)
	invoker.resp = &service.Response{
		GasLeft:  25000,
		Output:   []byte("done"),
		Storages: []service.StorageItem{{Key: b32(9), Value: []byte("stored by service")}},
		Logs:     []service.LogItem{{Topic: topic.Bytes(), Data: []byte("event")}},
	}
	executed = c.mustTransact(alice.sign(new(tx.Builder).Gas(50000).To(&addr).Data([]byte("input"))), TransactOptions{})
	assert.Nil(t, executed.Exception)
	assert.Equal(t, []byte("done"), executed.Output)
	assert.Equal(t, uint64(21000+29000-25000), executed.GasUsed)
	require.Len(t, executed.Logs, 1)
	assert.Equal(t, addr, executed.Logs[0].Address)
	assert.Equal(t, []cita.Bytes32{topic}, executed.Logs[0].Topics)

	stored, err := service.GetBytes(c.st, addr, b32(9))
	require.NoError(t, err)
	assert.Equal(t, []byte("stored by service"), stored)

	req := invoker.requests[1]
	assert.Equal(t, service.MethodInvoke, invoker.methods[1])
	assert.Equal(t, alice.addr, req.Params.Sender)
	assert.Equal(t, []byte("input"), []byte(req.Params.Data))
	assert.Equal(t, uint64(29000), uint64(req.Params.Gas))

	// a failing service is an internal error
	invoker.err = errors.New("connection refused")
	_, err = c.transact(alice.sign(new(tx.Builder).Gas(50000).To(&addr)), TransactOptions{})
	assert.Equal(t, KindInternal, executionError(t, err).Kind)
}
