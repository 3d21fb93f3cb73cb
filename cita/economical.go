// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cita

import (
	"fmt"
	"strings"
)

// EconomicalModel decides whether gas costs tokens.
type EconomicalModel uint8

const (
	// Quota model meters gas but never moves balances for it.
	Quota EconomicalModel = iota
	// Charge model prepays gas from the sender and pays fees to the block author or chain owner.
	Charge
)

func (m EconomicalModel) String() string {
	switch m {
	case Quota:
		return "quota"
	case Charge:
		return "charge"
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m EconomicalModel) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EconomicalModel) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "quota", "0":
		*m = Quota
	case "charge", "1":
		*m = Charge
	default:
		return fmt.Errorf("invalid economical model %q", text)
	}
	return nil
}
