// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"fmt"
)

// ReceiptError is the closed set of failures recorded in receipts. Zero means success.
type ReceiptError uint8

const (
	ReceiptOK ReceiptError = iota

	// rejected transactions
	NotEnoughBaseGas
	BlockGasLimitReached
	AccountGasLimitReached
	InvalidNonce
	NotEnoughCash
	NoTransactionPermission
	NoContractPermission
	NoCallPermission
	ExecutionInternal
	TransactionMalformed

	// execution exceptions
	OutOfGas
	BadJumpDestination
	BadInstruction
	StackUnderflow
	OutOfStack
	Internal
	MutableCallInStaticContext
	OutOfBounds
	Reverted
)

var receiptErrorDescs = [...]string{
	ReceiptOK:                  "",
	NotEnoughBaseGas:           "Not enough base gas.",
	BlockGasLimitReached:       "Block gas limit reached.",
	AccountGasLimitReached:     "Account gas limit reached.",
	InvalidNonce:               "Invalid transaction nonce.",
	NotEnoughCash:              "Cost of transaction exceeds sender balance.",
	NoTransactionPermission:    "No transaction permission.",
	NoContractPermission:       "No contract permission.",
	NoCallPermission:           "No Call contract permission.",
	ExecutionInternal:          "Execution internal error.",
	TransactionMalformed:       "Malformed transaction.",
	OutOfGas:                   "Out of gas.",
	BadJumpDestination:         "Jump position wasn't marked with JUMPDEST instruction.",
	BadInstruction:             "Instruction is not supported.",
	StackUnderflow:             "Not enough stack elements to execute instruction.",
	OutOfStack:                 "Execution would exceed defined Stack Limit.",
	Internal:                   "EVM internal error.",
	MutableCallInStaticContext: "Mutable call in static context.",
	OutOfBounds:                "Out of bounds.",
	Reverted:                   "Reverted.",
}

// Description returns human readable description.
func (e ReceiptError) Description() string {
	if int(e) < len(receiptErrorDescs) {
		return receiptErrorDescs[e]
	}
	return fmt.Sprintf("unknown receipt error %d", uint8(e))
}

func (e ReceiptError) String() string {
	if e == ReceiptOK {
		return "ok"
	}
	return e.Description()
}
