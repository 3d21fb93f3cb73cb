// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/citahub/cita-executor/cita"
)

// Account for marshal account
type Account struct {
	Balance  math.HexOrDecimal256 `json:"balance"`
	Nonce    math.HexOrDecimal256 `json:"nonce"`
	HasCode  bool                 `json:"hasCode"`
	CodeHash cita.Bytes32         `json:"codeHash"`
	ABIHash  cita.Bytes32         `json:"abiHash"`
}

// Code is the code of a contract.
type Code struct {
	Code hexutil.Bytes `json:"code"`
}

// Storage is the value of a storage slot.
type Storage struct {
	Value cita.Bytes32 `json:"value"`
}

// ABI is the abi of a contract.
type ABI struct {
	ABI string `json:"abi"`
}
