// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package vcenter resolves human-readable vSphere inventory names to managed
// object references.
package vcenter

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/types"
)

// ManagedTypes are the inventory object types permissions can be queried on.
var ManagedTypes = []string{
	"Folder",
	"VirtualMachine",
	"Datacenter",
	"ResourcePool",
	"Datastore",
	"Network",
	"HostSystem",
	"ComputeResource",
	"ClusterComputeResource",
	"DistributedVirtualSwitch",
}

// FindByTypeAndName searches the whole inventory for an object of the given
// type with the given name. Exactly one match is required.
func FindByTypeAndName(ctx context.Context, c *vim25.Client, objType, name string) (types.ManagedObjectReference, error) {
	var ref types.ManagedObjectReference

	m := view.NewManager(c)
	v, err := m.CreateContainerView(ctx, c.ServiceContent.RootFolder, []string{objType}, true)
	if err != nil {
		return ref, fmt.Errorf("object type %s is not valid: %w", objType, err)
	}
	defer func() { _ = v.Destroy(ctx) }()

	refs, err := v.Find(ctx, []string{objType}, property.Match{"name": name})
	if err != nil {
		return ref, fmt.Errorf("inventory search for %s %s failed: %w", objType, name, err)
	}

	switch len(refs) {
	case 0:
		return ref, fmt.Errorf("failed to find the object %s of type %s", name, objType)
	case 1:
		return refs[0], nil
	default:
		return ref, fmt.Errorf("multiple objects named %s of type %s", name, objType)
	}
}
