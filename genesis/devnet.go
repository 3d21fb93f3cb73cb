// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"crypto/ecdsa"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/runtime"
)

// DevAccount account for development.
type DevAccount struct {
	Address    cita.Address
	PrivateKey *ecdsa.PrivateKey
}

var devAccounts atomic.Value

// DevAccounts returns pre-alloced accounts for development chains.
func DevAccounts() []DevAccount {
	if accs := devAccounts.Load(); accs != nil {
		return accs.([]DevAccount)
	}

	var accs []DevAccount
	privKeys := []string{
		"dce1443bd2ef0c2631adc1c67e5c93f13dc23a41c18b536effbbdcbcdb96fb65",
		"321d6443bc6177273b5abf54210fe806d451d6b7973bccc2384ef78bbcd0bf51",
		"2d7c882bad2a01105e36dda3646693bc1aaaa45b0ed63fb0ce23c060294f3af2",
		"593537225b037191d322c3b1df585fb1e5100811b71a6f7fc7e29cca1333483e",
		"ca7b25fc980c759df5f3ce17a3d881d6e19a38e651fc4315fc08917edab41058",
	}
	for _, str := range privKeys {
		pk, err := crypto.HexToECDSA(str)
		if err != nil {
			panic(err)
		}
		addr := crypto.PubkeyToAddress(pk.PublicKey)
		accs = append(accs, DevAccount{cita.Address(addr), pk})
	}
	devAccounts.Store(accs)
	return accs
}

// DevGasLimit is the block gas limit of the development chain.
const DevGasLimit = 1 << 30

// NewDevnet creates the genesis of a charge-model development chain. The first dev account
// is both super admin and chain owner, every dev account is funded.
func NewDevnet() *Genesis {
	admin := DevAccounts()[0].Address

	config := runtime.DefaultConfig()
	config.EconomicalModel = cita.Charge
	config.ChainOwner = admin
	config.SuperAdmin = &admin

	gen := &Genesis{
		Timestamp: 1524000000000,
		GasLimit:  DevGasLimit,
		Proposer:  admin,
		Config:    *config,
	}
	bal, _ := new(big.Int).SetString("1000000000000000000000000000", 10)
	for _, a := range DevAccounts() {
		gen.Accounts = append(gen.Accounts, Account{
			Address: a.Address,
			Balance: (*math.HexOrDecimal256)(new(big.Int).Set(bal)),
		})
	}
	return gen
}
