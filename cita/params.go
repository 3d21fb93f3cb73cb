// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cita

// Gas schedule of transactions.
const (
	TxGas         uint64 = 21000 // base gas of plain transactions.
	TxCreateGas   uint64 = 53000 // base gas of contract creation transactions.
	TxDataNonZero uint64 = 68    // per byte of transaction data, for version > 2.
	CreateDataGas uint64 = 200   // per byte of data kept by Store and AbiStore transactions.
	SstoreRefund  uint64 = 15000 // refund for clearing a storage slot.
	SuicideRefund uint64 = 24000 // refund for a self-destruct.
	NativeCallGas uint64 = 100   // flat cost of calling a native contract.
	MaxCallDepth         = 1024
)

// StackSizePerDepth roughly estimates the native stack consumed by one level of nested calls.
const StackSizePerDepth = 24 * 1024

// DefaultStackSize is the default stack budget of the executive, in bytes.
const DefaultStackSize = 8 * 1024 * 1024
