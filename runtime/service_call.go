// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/service"
	"github.com/citahub/cita-executor/state"
	"github.com/citahub/cita-executor/vm"
)

// callService runs calls served by service contracts. ok is false if params
// doesn't target one, and the checkpoint is left open then.
func (e *Executive) callService(params *vm.ActionParams, substate *state.Substate) (res *vm.FinalizationResult, ok bool, err error) {
	registry, invoker := e.deps.Services, e.deps.Invoker
	if registry == nil || invoker == nil {
		return nil, false, nil
	}

	unconfirmed := state.NewSubstate()
	switch {
	case params.CodeAddress == cita.GoContractAddress:
		res, err = e.initService(registry, invoker, params)
	case cita.IsGoContract(params.CodeAddress):
		cs, found := registry.Find(params.CodeAddress, true)
		if !found {
			return nil, false, nil
		}
		res, err = e.invokeService(invoker, &cs.ConnInfo, service.MethodInvoke, params, params.Address, unconfirmed)
	default:
		return nil, false, nil
	}
	e.enactResult(res, err, substate, unconfirmed)
	return res, true, err
}

// initService initializes and enables the registered service contract whose address is the call data.
func (e *Executive) initService(registry *service.Registry, invoker service.Invoker, params *vm.ActionParams) (*vm.FinalizationResult, error) {
	if len(params.Data) < 20 {
		return nil, &vm.InternalError{Msg: "service contract address expected"}
	}
	addr := cita.BytesToAddress(params.Data[:20])
	cs, found := registry.Find(addr, false)
	if !found {
		return nil, &vm.InternalError{Msg: "service contract not registered: " + addr.String()}
	}

	p := params.Copy()
	p.CodeAddress, p.Address = addr, addr
	res, err := e.invokeService(invoker, &cs.ConnInfo, service.MethodInit, p, addr, state.NewSubstate())
	if err != nil {
		return nil, err
	}
	registry.Enable(addr)
	if err := registry.SetEnableHeight(addr, e.env.Number); err != nil {
		return nil, vm.Internal(err)
	}
	logger.Info("service contract enabled", "address", addr, "height", e.env.Number)
	return res, nil
}

func (e *Executive) invokeService(
	invoker service.Invoker,
	info *service.ConnectInfo,
	method string,
	params *vm.ActionParams,
	addr cita.Address,
	unconfirmed *state.Substate,
) (*vm.FinalizationResult, error) {
	req := &service.Request{
		Params: service.ActionParams{
			CodeAddress: params.CodeAddress,
			Address:     params.Address,
			Sender:      params.Sender,
			Origin:      params.Origin,
			Gas:         hexutil.Uint64(params.Gas),
			GasPrice:    (*hexutil.Big)(params.GasPrice.ToBig()),
			Value:       (*hexutil.Big)(params.Value.Value().ToBig()),
			Data:        params.Data,
		},
		EnvInfo: service.EnvInfo{
			Number:    hexutil.Uint64(e.env.Number),
			Author:    e.env.Author,
			Timestamp: hexutil.Uint64(e.env.Timestamp),
			GasLimit:  hexutil.Uint64(e.env.GasLimit),
		},
	}
	resp, err := invoker.Invoke(context.Background(), info, method, req)
	if err != nil {
		metricServiceCalls().AddWithLabel(1, map[string]string{"method": method, "status": "failed"})
		return nil, vm.Internal(err)
	}
	metricServiceCalls().AddWithLabel(1, map[string]string{"method": method, "status": "ok"})

	static := e.static || params.CallType == vm.CallTypeStaticCall
	if static && (len(resp.Storages) > 0 || len(resp.Logs) > 0) {
		return nil, vm.ErrMutableCallInStaticContext
	}
	for _, item := range resp.Storages {
		if err := service.SetBytes(e.state, addr, item.Key, item.Value); err != nil {
			return nil, vm.Internal(err)
		}
	}
	unconfirmed.Logs = append(unconfirmed.Logs, resp.ExtractLogs(addr)...)

	return &vm.FinalizationResult{
		GasLeft:    min(uint64(resp.GasLeft), params.Gas),
		ReturnData: resp.Output,
		ApplyState: true,
	}, nil
}
