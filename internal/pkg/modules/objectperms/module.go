// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package objectperms gathers the permission assignments on one managed
// object.
package objectperms

import (
	"context"

	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"

	"github.com/virtops/vsphere-automation-modules/internal/pkg/module"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/permissions"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcclient"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcenter"
)

const dvsWarning = "Permissions on a Distributed vSwitch are inherited from the datacenter " +
	"or a folder level. Define permissions on the datacenter or the folder containing the switch."

// Module implements the object-permissions-info operation.
type Module struct{}

func init() { module.Register(Module{}) }

// Name implements module.Module.
func (Module) Name() string { return "object-permissions-info" }

// ArgSpec implements module.Module.
func (Module) ArgSpec() module.Spec {
	return module.Spec{
		Fields: map[string]module.Field{
			"object_name": {Type: module.TypeStr},
			"moid":        {Type: module.TypeStr},
			"object_type": {Type: module.TypeStr, Default: "Folder", Choices: vcenter.ManagedTypes},
			"principal":   {Type: module.TypeStr},
			"group":       {Type: module.TypeStr},
			"inherited":   {Type: module.TypeBool, Default: false},
		},
		RequiredOneOf:     [][]string{{"object_name", "moid"}, {"principal", "group"}},
		MutuallyExclusive: [][]string{{"object_name", "moid"}, {"principal", "group"}},
	}.WithConnection()
}

// Check implements module.Module. The module only reads state, so check mode
// is the same as a run.
func (m Module) Check(ctx context.Context, sess *vcclient.Session, logger *zap.Logger, p module.Params) (module.Result, error) {
	return m.Run(ctx, sess, logger, p)
}

// Run implements module.Module.
func (m Module) Run(ctx context.Context, sess *vcclient.Session, logger *zap.Logger, p module.Params) (module.Result, error) {
	ref, err := resolveTarget(ctx, sess, p)
	if err != nil {
		return module.Result{}, err
	}

	var warnings []string
	if p.String("object_type") == "DistributedVirtualSwitch" {
		logger.Warn(dvsWarning, zap.String("object", ref.Value))
		warnings = append(warnings, dvsWarning)
	}

	perms, err := permissions.NewManager(sess.Client.Client).OnEntity(ctx, ref, p.Bool("inherited"))
	if err != nil {
		return module.Result{}, err
	}

	if principal := p.String("principal"); principal != "" {
		perms = permissions.ForPrincipal(perms, principal, false)
	} else if group := p.String("group"); group != "" {
		perms = permissions.ForPrincipal(perms, group, true)
	}

	return module.Result{
		Changed:  false,
		Data:     map[string]any{"permissions": perms},
		Warnings: warnings,
	}, nil
}

func resolveTarget(ctx context.Context, sess *vcclient.Session, p module.Params) (types.ManagedObjectReference, error) {
	objType := p.String("object_type")

	if moid := p.String("moid"); moid != "" {
		return types.ManagedObjectReference{Type: objType, Value: moid}, nil
	}

	name := p.String("object_name")
	// The inventory search does not cover the service content root folder.
	if objType == "Folder" && name == "rootFolder" {
		return sess.Client.ServiceContent.RootFolder, nil
	}

	return vcenter.FindByTypeAndName(ctx, sess.Client.Client, objType, name)
}
