// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/citahub/cita-executor/builtin"
	"github.com/citahub/cita-executor/native"
	"github.com/citahub/cita-executor/permission"
	"github.com/citahub/cita-executor/service"
	"github.com/citahub/cita-executor/vm"
)

// Deps are the collaborators an executive runs transactions with.
// Zero fields are filled with defaults by New.
type Deps struct {
	// defaults to vm.Unsupported, which fails every bytecode frame
	VMFactory   vm.Factory
	Natives     *native.Factory
	Builtins    *builtin.Registry
	Permissions *permission.Manager
	// service contracts are disabled when either is nil
	Services *service.Registry
	Invoker  service.Invoker
}

func (d Deps) withDefaults() *Deps {
	if d.VMFactory == nil {
		d.VMFactory = vm.Unsupported
	}
	if d.Natives == nil {
		d.Natives = native.NewFactory()
	}
	if d.Builtins == nil {
		d.Builtins = builtin.NewRegistry()
	}
	if d.Permissions == nil {
		d.Permissions = permission.New()
	}
	return &d
}
