// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/citahub/cita-executor/cita"
)

// CheckOptions switch the transaction checks on.
type CheckOptions struct {
	SendTxPermission         bool `yaml:"sendTxPermission"`
	CreateContractPermission bool `yaml:"createContractPermission"`
	CallPermission           bool `yaml:"callPermission"`
	Quota                    bool `yaml:"quota"`
}

// Config is the chain level configuration of the executive.
type Config struct {
	EconomicalModel cita.EconomicalModel `yaml:"economicalModel"`
	// pay fees to the chain owner rather than the block author
	FeeBackPlatform bool          `yaml:"feeBackPlatform"`
	ChainOwner      cita.Address  `yaml:"chainOwner"`
	SuperAdmin      *cita.Address `yaml:"superAdmin"`
	// stack budget in bytes, execution moves to a fresh goroutine every StackSize/StackSizePerDepth calls deep
	StackSize    int          `yaml:"stackSize"`
	CheckOptions CheckOptions `yaml:"checkOptions"`
}

// DefaultConfig returns a quota-model config with no checks.
func DefaultConfig() *Config {
	return &Config{
		EconomicalModel: cita.Quota,
		StackSize:       cita.DefaultStackSize,
	}
}

func (c *Config) paymentRequired() bool {
	return c.EconomicalModel == cita.Charge
}

func (c *Config) depthThreshold() int {
	size := c.StackSize
	if size <= 0 {
		size = cita.DefaultStackSize
	}
	return max(size/cita.StackSizePerDepth, 1)
}

// feeReceiver returns who collects transaction fees in blocks produced by author.
func (c *Config) feeReceiver(author cita.Address) cita.Address {
	if c.FeeBackPlatform && !c.ChainOwner.IsZero() {
		return c.ChainOwner
	}
	return author
}
