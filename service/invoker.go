// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package service

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/tx"
)

// Methods served by service contracts.
const (
	MethodInit   = "citacode_init"
	MethodInvoke = "citacode_invoke"
)

// ActionParams is the call descriptor sent to a service.
type ActionParams struct {
	CodeAddress cita.Address   `json:"codeAddress"`
	Address     cita.Address   `json:"address"`
	Sender      cita.Address   `json:"sender"`
	Origin      cita.Address   `json:"origin"`
	Gas         hexutil.Uint64 `json:"gas"`
	GasPrice    *hexutil.Big   `json:"gasPrice"`
	Value       *hexutil.Big   `json:"value"`
	Data        hexutil.Bytes  `json:"data"`
}

// EnvInfo is the block context sent to a service.
type EnvInfo struct {
	Number    hexutil.Uint64 `json:"number"`
	Author    cita.Address   `json:"author"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
	GasLimit  hexutil.Uint64 `json:"gasLimit"`
}

// Request is an init or invoke request.
type Request struct {
	Params  ActionParams `json:"params"`
	EnvInfo EnvInfo      `json:"envInfo"`
}

// StorageItem is a storage write made by a service.
type StorageItem struct {
	Key   cita.Bytes32  `json:"key"`
	Value hexutil.Bytes `json:"value"`
}

// LogItem is a log emitted by a service. Topic is the concatenation of 32-byte topics.
type LogItem struct {
	Topic hexutil.Bytes `json:"topic"`
	Data  hexutil.Bytes `json:"data"`
}

// Response is the result of an init or invoke request.
type Response struct {
	GasLeft  hexutil.Uint64 `json:"gasLeft"`
	Output   hexutil.Bytes  `json:"output"`
	Storages []StorageItem  `json:"storages"`
	Logs     []LogItem      `json:"logs"`
}

// ExtractLogs converts the logs of the response, attributed to addr.
func (r *Response) ExtractLogs(addr cita.Address) []*tx.Log {
	logs := make([]*tx.Log, 0, len(r.Logs))
	for _, l := range r.Logs {
		var topics []cita.Bytes32
		for i := 0; i < len(l.Topic); i += 32 {
			var t cita.Bytes32
			copy(t[:], l.Topic[i:min(i+32, len(l.Topic))])
			topics = append(topics, t)
		}
		logs = append(logs, &tx.Log{
			Address: addr,
			Topics:  topics,
			Data:    append([]byte(nil), l.Data...),
		})
	}
	return logs
}

// Invoker sends requests to services.
type Invoker interface {
	Invoke(ctx context.Context, info *ConnectInfo, method string, req *Request) (*Response, error)
}

// DialFunc connects to an endpoint.
type DialFunc func(ctx context.Context, endpoint string) (*rpc.Client, error)

// RPCInvoker invokes services over JSON-RPC, keeping one client per endpoint.
type RPCInvoker struct {
	dial    DialFunc
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*rpc.Client
}

// NewRPCInvoker creates an invoker. A nil dial dials over HTTP.
func NewRPCInvoker(dial DialFunc, timeout time.Duration) *RPCInvoker {
	if dial == nil {
		dial = rpc.DialContext
	}
	return &RPCInvoker{
		dial:    dial,
		timeout: timeout,
		clients: make(map[string]*rpc.Client),
	}
}

func (inv *RPCInvoker) client(ctx context.Context, endpoint string) (*rpc.Client, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if c, ok := inv.clients[endpoint]; ok {
		return c, nil
	}
	c, err := inv.dial(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "dial service")
	}
	inv.clients[endpoint] = c
	return c, nil
}

// Invoke implements Invoker.
func (inv *RPCInvoker) Invoke(ctx context.Context, info *ConnectInfo, method string, req *Request) (*Response, error) {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}
	c, err := inv.client(ctx, info.Endpoint())
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := c.CallContext(ctx, &resp, method, req); err != nil {
		return nil, errors.Wrap(err, method)
	}
	return &resp, nil
}

// Close closes all clients.
func (inv *RPCInvoker) Close() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for ep, c := range inv.clients {
		c.Close()
		delete(inv.clients, ep)
	}
}
