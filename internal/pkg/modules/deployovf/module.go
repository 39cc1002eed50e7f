// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package deployovf deploys a virtual machine from an OVF template stored in
// a content library.
package deployovf

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/vapi/library"
	"go.uber.org/zap"

	"github.com/virtops/vsphere-automation-modules/internal/pkg/contentlib"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/module"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcclient"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcenter"
)

// Module implements the deploy-ovf-template operation.
type Module struct{}

func init() { module.Register(Module{}) }

// Name implements module.Module.
func (Module) Name() string { return "deploy-ovf-template" }

// ArgSpec implements module.Module.
func (Module) ArgSpec() module.Spec {
	return module.Spec{
		Fields: map[string]module.Field{
			"template":          {Type: module.TypeStr, Required: true, Aliases: []string{"ovf", "ovf_template", "template_src"}},
			"library":           {Type: module.TypeStr, Aliases: []string{"content_library"}},
			"name":              {Type: module.TypeStr, Required: true, Aliases: []string{"vm_name"}},
			"datacenter":        {Type: module.TypeStr, Required: true},
			"datastore":         {Type: module.TypeStr},
			"datastore_cluster": {Type: module.TypeStr},
			"folder":            {Type: module.TypeStr, Default: "vm"},
			"host":              {Type: module.TypeStr},
			"resource_pool":     {Type: module.TypeStr},
			"cluster":           {Type: module.TypeStr},
			"storage_provisioning": {
				Type:    module.TypeStr,
				Default: "thin",
				Choices: []string{"thin", "thick", "eagerZeroedThick", "eagerzeroedthick"},
				Env:     "VMWARE_STORAGE_PROVISIONING",
			},
		},
		RequiredOneOf: [][]string{{"datastore", "datastore_cluster"}},
	}.WithConnection()
}

// Check implements module.Module. It reports the deployment that Run would
// perform, short-circuiting when the VM already exists.
func (m Module) Check(ctx context.Context, sess *vcclient.Session, logger *zap.Logger, p module.Params) (module.Result, error) {
	vmName := p.String("name")

	finder, err := datacenterFinder(ctx, sess, p.String("datacenter"))
	if err != nil {
		return module.Result{}, err
	}

	if r, done, err := existingVM(ctx, finder, vmName); done || err != nil {
		return r, err
	}

	return module.Result{
		Changed: true,
		Data: map[string]any{
			"vm_name":           vmName,
			"desired_operation": "Create VM with PowerOff State",
		},
	}, nil
}

// Run implements module.Module.
func (m Module) Run(ctx context.Context, sess *vcclient.Session, logger *zap.Logger, p module.Params) (module.Result, error) {
	vmName := p.String("name")

	finder, err := datacenterFinder(ctx, sess, p.String("datacenter"))
	if err != nil {
		return module.Result{}, err
	}

	if r, done, err := existingVM(ctx, finder, vmName); done || err != nil {
		return r, err
	}

	datastoreID, err := resolveDatastore(ctx, sess, finder, p)
	if err != nil {
		return module.Result{}, err
	}
	logger.Debug("resolved datastore", zap.String("id", datastoreID))

	item, err := resolveItem(ctx, sess, p)
	if err != nil {
		return module.Result{}, err
	}
	logger.Debug("resolved library item", zap.String("id", item.ID), zap.String("name", item.Name))

	folder, err := finder.Folder(ctx, p.String("folder"))
	if err != nil {
		return module.Result{}, fmt.Errorf("failed to find the folder %s: %w", p.String("folder"), err)
	}

	hostID := ""
	if host := p.String("host"); host != "" {
		h, err := finder.HostSystem(ctx, host)
		if err != nil {
			return module.Result{}, fmt.Errorf("failed to find the host %s: %w", host, err)
		}
		hostID = h.Reference().Value
	}

	poolID, err := resolveResourcePool(ctx, finder, p)
	if err != nil {
		return module.Result{}, err
	}

	provisioning := p.String("storage_provisioning")
	if provisioning == "eagerzeroedthick" {
		provisioning = "eagerZeroedThick"
	}

	logger.Info("deploying virtual machine from library item",
		zap.String("vm", vmName),
		zap.String("item", item.Name),
		zap.String("resource_pool", poolID),
		zap.String("folder", folder.Reference().Value))

	ref, err := contentlib.Deploy(ctx, sess.Rest, item.ID, contentlib.DeploySpec{
		Name:                vmName,
		StorageProvisioning: provisioning,
		DatastoreID:         datastoreID,
		ResourcePoolID:      poolID,
		FolderID:            folder.Reference().Value,
		HostID:              hostID,
	})
	if err != nil {
		return module.Result{}, err
	}

	return module.Result{
		Changed: true,
		Msg:     fmt.Sprintf("Deployed Virtual Machine '%s'.", vmName),
		Data:    map[string]any{"vm_id": ref.Value},
	}, nil
}

// datacenterFinder resolves the datacenter and returns a finder scoped to it.
func datacenterFinder(ctx context.Context, sess *vcclient.Session, name string) (*find.Finder, error) {
	finder := sess.Finder()
	dc, err := finder.Datacenter(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find the datacenter %s: %w", name, err)
	}
	finder.SetDatacenter(dc)
	return finder, nil
}

// existingVM reports an unchanged result when the VM name is already taken.
func existingVM(ctx context.Context, finder *find.Finder, vmName string) (module.Result, bool, error) {
	vm, err := vcenter.FindVirtualMachine(ctx, finder, vmName)
	if err != nil {
		return module.Result{}, false, err
	}
	if vm == nil {
		return module.Result{}, false, nil
	}
	return module.Result{
		Changed: false,
		Msg:     fmt.Sprintf("Virtual Machine '%s' already exists.", vmName),
		Data:    map[string]any{"vm_id": vm.Reference().Value},
	}, true, nil
}

func resolveDatastore(ctx context.Context, sess *vcclient.Session, finder *find.Finder, p module.Params) (string, error) {
	if name := p.String("datastore"); name != "" {
		ds, err := finder.Datastore(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to find the datastore %s: %w", name, err)
		}
		return ds.Reference().Value, nil
	}

	if name := p.String("datastore_cluster"); name != "" {
		pod, err := finder.DatastoreCluster(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to find the datastore cluster %s: %w", name, err)
		}
		ds, err := vcenter.RecommendedDatastore(ctx, sess.Client.Client, pod)
		if err != nil {
			return "", err
		}
		return ds.Reference().Value, nil
	}

	return "", fmt.Errorf("failed to find the datastore using either datastore or datastore cluster")
}

func resolveItem(ctx context.Context, sess *vcclient.Session, p module.Params) (*library.Item, error) {
	resolver := contentlib.NewResolver(sess.Rest)
	if lib := p.String("library"); lib != "" {
		return resolver.ItemInLibrary(ctx, lib, p.String("template"))
	}
	return resolver.ItemByName(ctx, p.String("template"))
}

func resolveResourcePool(ctx context.Context, finder *find.Finder, p module.Params) (string, error) {
	if name := p.String("resource_pool"); name != "" {
		rp, err := finder.ResourcePool(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to find the resource_pool %s: %w", name, err)
		}
		return rp.Reference().Value, nil
	}

	if name := p.String("cluster"); name != "" {
		cluster, err := finder.ClusterComputeResource(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to find the cluster %s: %w", name, err)
		}
		rp, err := cluster.ResourcePool(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get the resource pool of cluster %s: %w", name, err)
		}
		return rp.Reference().Value, nil
	}

	return "", fmt.Errorf("failed to find a resource pool either by name or cluster")
}
