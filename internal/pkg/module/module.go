// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package module defines the automation module contract: declarative
// argument specs, resolved parameters and the flat result document.
package module

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcclient"
)

// Result is the outcome of a single module invocation. Data keys are merged
// into the top level of the emitted result document next to changed and msg.
type Result struct {
	Changed  bool
	Msg      string
	Data     map[string]any
	Warnings []string
}

// Module is a single automation operation against vCenter.
type Module interface {
	Name() string
	ArgSpec() Spec

	// Run performs the operation. A returned error is a terminal failure and
	// becomes the msg of a failed result.
	Run(ctx context.Context, sess *vcclient.Session, logger *zap.Logger, p Params) (Result, error)

	// Check reports what Run would do without touching the platform state.
	Check(ctx context.Context, sess *vcclient.Session, logger *zap.Logger, p Params) (Result, error)
}

var registry = map[string]Module{}

// Register adds a module to the registry. Called from module package init.
func Register(m Module) { registry[m.Name()] = m }

// Get returns a registered module or nil.
func Get(name string) Module { return registry[name] }

// List returns registered module names, sorted.
func List() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
