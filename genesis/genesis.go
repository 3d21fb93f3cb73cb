// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis builds the initial world state from a YAML description.
package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/muxdb"
	"github.com/citahub/cita-executor/permission"
	"github.com/citahub/cita-executor/runtime"
	"github.com/citahub/cita-executor/service"
	"github.com/citahub/cita-executor/state"
)

// Genesis is user customized genesis.
type Genesis struct {
	Timestamp   uint64         `yaml:"timestamp"`
	GasLimit    uint64         `yaml:"gasLimit"`
	Proposer    cita.Address   `yaml:"proposer"`
	Config      runtime.Config `yaml:",inline"`
	Accounts    []Account      `yaml:"accounts"`
	Groups      []Group        `yaml:"groups"`
	Permissions []Permission   `yaml:"permissions"`
	Services    []Service      `yaml:"services"`
}

// Account is the account will set to the genesis state.
type Account struct {
	Address cita.Address          `yaml:"address"`
	Balance *math.HexOrDecimal256 `yaml:"balance"`
	Nonce   uint64                `yaml:"nonce"`
	Code    hexutil.Bytes         `yaml:"code"`
	ABI     string                `yaml:"abi"`
	// hex keys and values, left padded to 32 bytes
	Storage map[string]string `yaml:"storage"`
}

// Group is a permission group and its members.
type Group struct {
	Address cita.Address   `yaml:"address"`
	Members []cita.Address `yaml:"members"`
}

// Permission grants resources to an account or group.
type Permission struct {
	Account   cita.Address          `yaml:"account"`
	Resources []permission.Resource `yaml:"resources"`
}

// Service is a service contract registered at genesis, disabled until initialized.
type Service struct {
	Address cita.Address `yaml:"address"`
	IP      string       `yaml:"ip"`
	Port    uint16       `yaml:"port"`
}

// Load reads a YAML genesis file.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis file")
	}
	return Parse(data)
}

// Parse decodes a YAML genesis. Unknown fields are rejected.
func Parse(data []byte) (*Genesis, error) {
	gen := Genesis{Config: *runtime.DefaultConfig()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&gen); err != nil {
		return nil, errors.Wrap(err, "decode genesis")
	}
	if err := gen.validate(); err != nil {
		return nil, err
	}
	return &gen, nil
}

func (g *Genesis) validate() error {
	if g.GasLimit == 0 {
		return errors.New("gasLimit must be set")
	}
	seen := make(map[cita.Address]bool)
	for _, a := range g.Accounts {
		if seen[a.Address] {
			return fmt.Errorf("%v: duplicated account", a.Address)
		}
		seen[a.Address] = true
		if a.Balance != nil {
			if bigInt(a.Balance).Sign() < 0 {
				return fmt.Errorf("%v: balance must not be negative", a.Address)
			}
			if _, overflow := uint256.FromBig(bigInt(a.Balance)); overflow {
				return fmt.Errorf("%v: balance overflows 256 bits", a.Address)
			}
		}
		for k, v := range a.Storage {
			if _, err := parseWord(k); err != nil {
				return fmt.Errorf("%v: storage key %q: %v", a.Address, k, err)
			}
			if _, err := parseWord(v); err != nil {
				return fmt.Errorf("%v: storage value %q: %v", a.Address, v, err)
			}
		}
	}
	for _, s := range g.Services {
		if !cita.IsGoContract(s.Address) {
			return fmt.Errorf("%v: service contract address out of range", s.Address)
		}
	}
	return nil
}

// RuntimeConfig returns the chain configuration for the executive.
func (g *Genesis) RuntimeConfig() *runtime.Config {
	c := g.Config
	return &c
}

// PermissionManager returns a manager loaded with the genesis groups and permissions.
func (g *Genesis) PermissionManager() *permission.Manager {
	m := permission.New()
	for _, group := range g.Groups {
		m.AddMembers(group.Address, group.Members...)
	}
	for _, p := range g.Permissions {
		m.Grant(p.Account, p.Resources...)
	}
	return m
}

// RegisterServices adds the genesis service contracts not yet enabled in r.
func (g *Genesis) RegisterServices(r *service.Registry) {
	for _, s := range g.Services {
		if _, ok := r.Find(s.Address, true); ok {
			continue
		}
		r.Register(s.Address, s.IP, s.Port, 0)
	}
}

// Builder returns the builder of the genesis block.
func (g *Genesis) Builder() *Builder {
	return new(Builder).
		Timestamp(g.Timestamp).
		GasLimit(g.GasLimit).
		Proposer(g.Proposer).
		State(func(st *state.State) error {
			for _, a := range g.Accounts {
				if err := allocate(st, &a); err != nil {
					return errors.Wrap(err, a.Address.String())
				}
			}
			return nil
		})
}

// Build commits the genesis state into db and returns the genesis block.
func (g *Genesis) Build(db *muxdb.MuxDB) (*block.Block, error) {
	return g.Builder().Build(db)
}

func allocate(st *state.State, a *Account) error {
	balance := new(uint256.Int)
	if a.Balance != nil {
		balance, _ = uint256.FromBig(bigInt(a.Balance))
	}

	if len(a.Code) == 0 && a.ABI == "" && len(a.Storage) == 0 && a.Nonce == 0 {
		return st.AddBalance(a.Address, balance)
	}

	st.NewContract(a.Address, balance, uint256.NewInt(a.Nonce))
	if len(a.Code) > 0 {
		if err := st.InitCode(a.Address, a.Code); err != nil {
			return err
		}
	}
	if a.ABI != "" {
		if err := st.InitABI(a.Address, []byte(a.ABI)); err != nil {
			return err
		}
	}
	for k, v := range a.Storage {
		key, err := parseWord(k)
		if err != nil {
			return err
		}
		value, err := parseWord(v)
		if err != nil {
			return err
		}
		if err := st.SetStorage(a.Address, key, value); err != nil {
			return err
		}
	}
	return nil
}

func bigInt(v *math.HexOrDecimal256) *big.Int {
	return (*big.Int)(v)
}

// parseWord decodes a 0x-prefixed hex word of at most 32 bytes.
func parseWord(s string) (cita.Bytes32, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return cita.Bytes32{}, err
	}
	if len(b) > 32 {
		return cita.Bytes32{}, errors.New("word longer than 32 bytes")
	}
	return cita.BytesToBytes32(b), nil
}
