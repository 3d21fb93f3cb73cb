// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/vm"
)

// TraceType is the kind of a traced action.
type TraceType uint8

const (
	TraceCall TraceType = iota
	TraceCreate
	TraceSuicide
)

func (t TraceType) String() string {
	switch t {
	case TraceCall:
		return "call"
	case TraceCreate:
		return "create"
	case TraceSuicide:
		return "suicide"
	}
	return "unknown"
}

// FlatTrace is one action of the call tree. TraceAddress locates it in the tree,
// the top level action has an empty address.
type FlatTrace struct {
	Type TraceType
	// for suicides From is the dying account and To receives the refund.
	// for creates To is the created contract.
	From     cita.Address
	To       cita.Address
	Value    *uint256.Int
	Gas      uint64
	Input    []byte
	CallType vm.CallType

	GasUsed uint64
	// call output, or the deployed code
	Output []byte
	// empty on success
	Error string

	Subtraces    int
	TraceAddress []int
}

// Tracer collects the call tree of a transaction.
type Tracer interface {
	TraceCall(params *vm.ActionParams, gasUsed uint64, output []byte, subs []*FlatTrace)
	TraceCreate(params *vm.ActionParams, gasUsed uint64, code []byte, subs []*FlatTrace)
	TraceFailedCall(params *vm.ActionParams, subs []*FlatTrace, err error)
	TraceFailedCreate(params *vm.ActionParams, subs []*FlatTrace, err error)
	TraceSuicide(addr cita.Address, balance *uint256.Int, refund cita.Address)
	// Subtracer returns a tracer for the next level of calls.
	Subtracer() Tracer
	Traces() []*FlatTrace
}

// VMTrace records which code ran at each depth.
type VMTrace struct {
	Depth    int
	CodeHash cita.Bytes32
	CodeSize int
	Subs     []*VMTrace
}

// VMTracer collects the VM trace of a transaction.
type VMTracer interface {
	PrepareSubtrace(code []byte) VMTracer
	DoneSubtrace(sub VMTracer)
	Drain() *VMTrace
}

// NoopTracer discards everything.
type NoopTracer struct{}

func (NoopTracer) TraceCall(*vm.ActionParams, uint64, []byte, []*FlatTrace)   {}
func (NoopTracer) TraceCreate(*vm.ActionParams, uint64, []byte, []*FlatTrace) {}
func (NoopTracer) TraceFailedCall(*vm.ActionParams, []*FlatTrace, error)      {}
func (NoopTracer) TraceFailedCreate(*vm.ActionParams, []*FlatTrace, error)    {}
func (NoopTracer) TraceSuicide(cita.Address, *uint256.Int, cita.Address)      {}
func (NoopTracer) Subtracer() Tracer                                          { return NoopTracer{} }
func (NoopTracer) Traces() []*FlatTrace                                       { return nil }

// NoopVMTracer discards everything.
type NoopVMTracer struct{}

func (NoopVMTracer) PrepareSubtrace([]byte) VMTracer { return NoopVMTracer{} }
func (NoopVMTracer) DoneSubtrace(VMTracer)           {}
func (NoopVMTracer) Drain() *VMTrace                 { return nil }

// ExecutiveTracer builds flat traces.
type ExecutiveTracer struct {
	traces []*FlatTrace
}

func callTrace(params *vm.ActionParams) *FlatTrace {
	return &FlatTrace{
		Type:     TraceCall,
		From:     params.Sender,
		To:       params.Address,
		Value:    params.Value.Value(),
		Gas:      params.Gas,
		Input:    params.Data,
		CallType: params.CallType,
	}
}

func createTrace(params *vm.ActionParams) *FlatTrace {
	return &FlatTrace{
		Type:  TraceCreate,
		From:  params.Sender,
		To:    params.Address,
		Value: params.Value.Value(),
		Gas:   params.Gas,
		Input: params.Code,
	}
}

func (t *ExecutiveTracer) push(trace *FlatTrace, subs []*FlatTrace) {
	trace.Subtraces = topLevelSubtraces(subs)
	t.traces = append(t.traces, trace)
	t.traces = append(t.traces, prefixSubtraceAddresses(subs)...)
}

func (t *ExecutiveTracer) TraceCall(params *vm.ActionParams, gasUsed uint64, output []byte, subs []*FlatTrace) {
	trace := callTrace(params)
	trace.GasUsed = gasUsed
	trace.Output = append([]byte(nil), output...)
	t.push(trace, subs)
}

func (t *ExecutiveTracer) TraceCreate(params *vm.ActionParams, gasUsed uint64, code []byte, subs []*FlatTrace) {
	trace := createTrace(params)
	trace.GasUsed = gasUsed
	trace.Output = append([]byte(nil), code...)
	t.push(trace, subs)
}

func (t *ExecutiveTracer) TraceFailedCall(params *vm.ActionParams, subs []*FlatTrace, err error) {
	trace := callTrace(params)
	trace.Error = err.Error()
	t.push(trace, subs)
}

func (t *ExecutiveTracer) TraceFailedCreate(params *vm.ActionParams, subs []*FlatTrace, err error) {
	trace := createTrace(params)
	trace.Error = err.Error()
	t.push(trace, subs)
}

func (t *ExecutiveTracer) TraceSuicide(addr cita.Address, balance *uint256.Int, refund cita.Address) {
	t.traces = append(t.traces, &FlatTrace{
		Type:  TraceSuicide,
		From:  addr,
		To:    refund,
		Value: balance,
	})
}

func (t *ExecutiveTracer) Subtracer() Tracer { return &ExecutiveTracer{} }

func (t *ExecutiveTracer) Traces() []*FlatTrace { return t.traces }

func topLevelSubtraces(traces []*FlatTrace) (n int) {
	for _, t := range traces {
		if len(t.TraceAddress) == 0 {
			n++
		}
	}
	return
}

// prefixSubtraceAddresses moves traces one level down. Each top level trace starts a new subtree.
func prefixSubtraceAddresses(traces []*FlatTrace) []*FlatTrace {
	index := 0
	for i, t := range traces {
		if i > 0 && len(t.TraceAddress) == 0 {
			index++
		}
		t.TraceAddress = append([]int{index}, t.TraceAddress...)
	}
	return traces
}

// ExecutiveVMTracer builds the VM trace.
type ExecutiveVMTracer struct {
	data *VMTrace
}

// NewExecutiveVMTracer creates the tracer of a top level execution.
func NewExecutiveVMTracer() *ExecutiveVMTracer {
	return &ExecutiveVMTracer{data: &VMTrace{}}
}

func (t *ExecutiveVMTracer) PrepareSubtrace(code []byte) VMTracer {
	return &ExecutiveVMTracer{data: &VMTrace{
		Depth:    t.data.Depth + 1,
		CodeHash: cita.Keccak256(code),
		CodeSize: len(code),
	}}
}

func (t *ExecutiveVMTracer) DoneSubtrace(sub VMTracer) {
	if d := sub.Drain(); d != nil {
		t.data.Subs = append(t.data.Subs, d)
	}
}

func (t *ExecutiveVMTracer) Drain() *VMTrace { return t.data }
