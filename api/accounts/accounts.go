// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/api/utils"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/muxdb"
	"github.com/citahub/cita-executor/state"
)

// HeadFunc returns the state root of the latest applied block.
type HeadFunc func() (cita.Bytes32, error)

type Accounts struct {
	db   *muxdb.MuxDB
	head HeadFunc
}

func New(db *muxdb.MuxDB, head HeadFunc) *Accounts {
	return &Accounts{
		db,
		head,
	}
}

// state opens the state at the root given by the query, or the head state.
func (a *Accounts) state(req *http.Request) (*state.State, error) {
	var root cita.Bytes32
	if s := req.URL.Query().Get("root"); s != "" {
		r, err := cita.ParseBytes32(s)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "root"))
		}
		root = r
		has, err := a.db.Contains(root)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, utils.NotFound(errors.New("root: not found"))
		}
	} else {
		r, err := a.head()
		if err != nil {
			return nil, err
		}
		root = r
	}
	return state.New(a.db, root)
}

func parseAddress(req *http.Request) (cita.Address, error) {
	addr, err := cita.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return cita.Address{}, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return *addr, nil
}

func (a *Accounts) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	st, err := a.state(req)
	if err != nil {
		return err
	}
	balance, err := st.Balance(addr)
	if err != nil {
		return err
	}
	nonce, err := st.Nonce(addr)
	if err != nil {
		return err
	}
	codeHash, err := st.CodeHash(addr)
	if err != nil {
		return err
	}
	abiHash, err := st.ABIHash(addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Account{
		Balance:  math.HexOrDecimal256(*balance.ToBig()),
		Nonce:    math.HexOrDecimal256(*nonce.ToBig()),
		HasCode:  codeHash != cita.EmptyCodeHash,
		CodeHash: codeHash,
		ABIHash:  abiHash,
	})
}

func (a *Accounts) handleGetCode(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	st, err := a.state(req)
	if err != nil {
		return err
	}
	code, err := st.Code(addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Code{Code: hexutil.Bytes(code)})
}

func (a *Accounts) handleGetABI(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	st, err := a.state(req)
	if err != nil {
		return err
	}
	abi, err := st.ABI(addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &ABI{ABI: string(abi)})
}

func (a *Accounts) handleGetStorage(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	key, err := cita.ParseBytes32(mux.Vars(req)["key"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "key"))
	}
	st, err := a.state(req)
	if err != nil {
		return err
	}
	value, err := st.StorageAt(addr, key)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Storage{Value: value})
}

func (a *Accounts) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{address}").Methods(http.MethodGet).Name("accounts_get_account").HandlerFunc(utils.WrapHandlerFunc(a.handleGetAccount))
	sub.Path("/{address}/code").Methods(http.MethodGet).Name("accounts_get_code").HandlerFunc(utils.WrapHandlerFunc(a.handleGetCode))
	sub.Path("/{address}/abi").Methods(http.MethodGet).Name("accounts_get_abi").HandlerFunc(utils.WrapHandlerFunc(a.handleGetABI))
	sub.Path("/{address}/storage/{key}").Methods(http.MethodGet).Name("accounts_get_storage").HandlerFunc(utils.WrapHandlerFunc(a.handleGetStorage))
}
