// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"math"

	"github.com/citahub/cita-executor/cita"
)

// Schedule is the gas and limit table the executive and VMs agree on.
type Schedule struct {
	StackLimit  int
	MaxDepth    int
	TierStepGas [8]uint64

	ExpGas         uint64
	ExpByteGas     uint64
	Sha3Gas        uint64
	Sha3WordGas    uint64
	SloadGas       uint64
	SstoreSetGas   uint64
	SstoreResetGas uint64
	SstoreRefund   uint64
	JumpdestGas    uint64
	LogGas         uint64
	LogDataGas     uint64
	LogTopicGas    uint64
	CreateGas      uint64
	CallGas        uint64
	CallStipend    uint64
	CallValueGas   uint64
	CallNewAccount uint64
	SuicideRefund  uint64
	MemoryGas      uint64
	QuadCoeffDiv   uint64
	CreateDataGas  uint64
	// max size of deployed code
	CreateDataLimit int

	TxGas           uint64
	TxCreateGas     uint64
	TxDataZeroGas   uint64
	TxDataNonZero   uint64
	CopyGas         uint64
	ExtCodeSizeGas  uint64
	ExtCodeCopyBase uint64
	BalanceGas      uint64
	SuicideGas      uint64
	SubGasCapDiv    uint64
}

// NewScheduleV1 returns the only schedule in use.
func NewScheduleV1() *Schedule {
	return &Schedule{
		StackLimit:  1024,
		MaxDepth:    cita.MaxCallDepth,
		TierStepGas: [8]uint64{0, 2, 3, 5, 8, 10, 20, 0},

		ExpGas:          10,
		ExpByteGas:      10,
		Sha3Gas:         30,
		Sha3WordGas:     6,
		SloadGas:        50,
		SstoreSetGas:    20000,
		SstoreResetGas:  5000,
		SstoreRefund:    cita.SstoreRefund,
		JumpdestGas:     1,
		LogGas:          375,
		LogDataGas:      8,
		LogTopicGas:     375,
		CreateGas:       32000,
		CallGas:         40,
		CallStipend:     2300,
		CallValueGas:    9000,
		CallNewAccount:  25000,
		SuicideRefund:   cita.SuicideRefund,
		MemoryGas:       3,
		QuadCoeffDiv:    512,
		CreateDataGas:   cita.CreateDataGas,
		CreateDataLimit: math.MaxInt,

		TxGas:           cita.TxGas,
		TxCreateGas:     cita.TxCreateGas,
		TxDataZeroGas:   4,
		TxDataNonZero:   cita.TxDataNonZero,
		CopyGas:         3,
		ExtCodeSizeGas:  20,
		ExtCodeCopyBase: 20,
		BalanceGas:      20,
		SuicideGas:      0,
		SubGasCapDiv:    64,
	}
}
