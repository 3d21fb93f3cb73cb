// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/tx"
	"github.com/citahub/cita-executor/vm"
)

// ErrorKind classifies why a transaction was rejected.
type ErrorKind uint8

const (
	KindNotEnoughBaseGas ErrorKind = iota + 1
	KindBlockGasLimitReached
	KindAccountGasLimitReached
	KindNotEnoughCash
	KindNoTransactionPermission
	KindNoContractPermission
	KindNoCallPermission
	KindInternal
	KindTransactionMalformed
)

// ExecutionError rejects a transaction. A rejected transaction must not be included,
// and its state changes must be dropped by the caller.
type ExecutionError struct {
	Kind ErrorKind
	// set for KindNotEnoughBaseGas and KindNotEnoughCash
	Required *big.Int
	Got      *big.Int
	Msg      string
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case KindNotEnoughBaseGas:
		return fmt.Sprintf("not enough base gas: required %v, got %v", e.Required, e.Got)
	case KindNotEnoughCash:
		return fmt.Sprintf("not enough cash: required %v, got %v", e.Required, e.Got)
	case KindBlockGasLimitReached:
		return "block gas limit reached: " + e.Msg
	case KindAccountGasLimitReached:
		return "account gas limit reached: " + e.Msg
	case KindNoTransactionPermission:
		return "no transaction permission"
	case KindNoContractPermission:
		return "no contract permission"
	case KindNoCallPermission:
		return "no call contract permission"
	case KindInternal:
		return "execution internal error: " + e.Msg
	case KindTransactionMalformed:
		return "malformed transaction: " + e.Msg
	}
	return fmt.Sprintf("execution error %d", e.Kind)
}

// ReceiptError maps the rejection into the receipt error set.
func (e *ExecutionError) ReceiptError() tx.ReceiptError {
	switch e.Kind {
	case KindNotEnoughBaseGas:
		return tx.NotEnoughBaseGas
	case KindBlockGasLimitReached:
		return tx.BlockGasLimitReached
	case KindAccountGasLimitReached:
		return tx.AccountGasLimitReached
	case KindNotEnoughCash:
		return tx.NotEnoughCash
	case KindNoTransactionPermission:
		return tx.NoTransactionPermission
	case KindNoContractPermission:
		return tx.NoContractPermission
	case KindNoCallPermission:
		return tx.NoCallPermission
	case KindTransactionMalformed:
		return tx.TransactionMalformed
	}
	return tx.ExecutionInternal
}

func rejected(kind ErrorKind) *ExecutionError {
	return &ExecutionError{Kind: kind}
}

func malformed(msg string) *ExecutionError {
	return &ExecutionError{Kind: KindTransactionMalformed, Msg: msg}
}

func internalError(err error) *ExecutionError {
	return &ExecutionError{Kind: KindInternal, Msg: err.Error()}
}

// AsExecutionError returns the ExecutionError in err's chain, if any.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// ExceptionReceiptError maps an execution exception into the receipt error set.
func ExceptionReceiptError(exception error) tx.ReceiptError {
	var (
		badJump    *vm.BadJumpDestinationError
		badInstr   *vm.BadInstructionError
		underflow  *vm.StackUnderflowError
		outOfStack *vm.OutOfStackError
	)
	switch {
	case exception == nil:
		return tx.ReceiptOK
	case errors.Is(exception, vm.ErrOutOfGas):
		return tx.OutOfGas
	case errors.As(exception, &badJump):
		return tx.BadJumpDestination
	case errors.As(exception, &badInstr):
		return tx.BadInstruction
	case errors.As(exception, &underflow):
		return tx.StackUnderflow
	case errors.As(exception, &outOfStack):
		return tx.OutOfStack
	case errors.Is(exception, vm.ErrMutableCallInStaticContext):
		return tx.MutableCallInStaticContext
	case errors.Is(exception, vm.ErrOutOfBounds):
		return tx.OutOfBounds
	case errors.Is(exception, vm.ErrReverted):
		return tx.Reverted
	}
	return tx.Internal
}
