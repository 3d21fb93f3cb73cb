// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors without details.
var (
	ErrOutOfGas                   = errors.New("out of gas")
	ErrMutableCallInStaticContext = errors.New("mutable call in static context")
	ErrOutOfBounds                = errors.New("out of bounds")
	ErrReverted                   = errors.New("reverted")
)

// BadJumpDestinationError is returned when a jump targets a position not marked as JUMPDEST.
type BadJumpDestinationError struct {
	Destination uint64
}

func (e *BadJumpDestinationError) Error() string {
	return fmt.Sprintf("bad jump destination %x", e.Destination)
}

// BadInstructionError is returned for unsupported opcodes.
type BadInstructionError struct {
	Instruction byte
}

func (e *BadInstructionError) Error() string {
	return fmt.Sprintf("bad instruction %x", e.Instruction)
}

// StackUnderflowError is returned when an instruction needs more stack items than present.
type StackUnderflowError struct {
	Instruction string
	Wanted      int
	OnStack     int
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("stack underflow %s %d/%d", e.Instruction, e.Wanted, e.OnStack)
}

// OutOfStackError is returned when an instruction would exceed the stack limit.
type OutOfStackError struct {
	Instruction string
	Wanted      int
	Limit       int
}

func (e *OutOfStackError) Error() string {
	return fmt.Sprintf("out of stack %s %d/%d", e.Instruction, e.Wanted, e.Limit)
}

// InternalError is a failure not caused by the executed code, such as storage failures
// or a misuse of administrative operations.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

// Internal wraps err as an InternalError. It returns nil for nil err,
// and err itself if it's already an InternalError.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie
	}
	return &InternalError{err.Error()}
}

// IsInternal returns whether err is an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
