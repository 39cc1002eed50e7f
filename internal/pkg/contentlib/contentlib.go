// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package contentlib resolves content library items and deploys OVF items.
package contentlib

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/vapi/library"
	"github.com/vmware/govmomi/vapi/rest"
	"github.com/vmware/govmomi/vapi/vcenter"
	"github.com/vmware/govmomi/vim25/types"
)

// Resolver finds items in content libraries.
type Resolver struct {
	lib *library.Manager
}

// NewResolver returns a Resolver bound to the REST session.
func NewResolver(rc *rest.Client) *Resolver {
	return &Resolver{lib: library.NewManager(rc)}
}

// ItemByName finds a library item by name across all content libraries.
func (r *Resolver) ItemByName(ctx context.Context, name string) (*library.Item, error) {
	return r.findOne(ctx, library.FindItem{Name: name})
}

// ItemInLibrary finds a library item by name inside the named library.
func (r *Resolver) ItemInLibrary(ctx context.Context, libraryName, name string) (*library.Item, error) {
	l, err := r.lib.GetLibraryByName(ctx, libraryName)
	if err != nil {
		return nil, fmt.Errorf("failed to find the content library %s: %w", libraryName, err)
	}
	return r.findOne(ctx, library.FindItem{LibraryID: l.ID, Name: name})
}

func (r *Resolver) findOne(ctx context.Context, spec library.FindItem) (*library.Item, error) {
	ids, err := r.lib.FindLibraryItems(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("library item search for %s failed: %w", spec.Name, err)
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("failed to find the library item %s", spec.Name)
	case 1:
	default:
		return nil, fmt.Errorf("multiple library items named %s", spec.Name)
	}

	item, err := r.lib.GetLibraryItem(ctx, ids[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get the library item %s: %w", spec.Name, err)
	}
	return item, nil
}

// DeploySpec describes where and how to deploy an OVF library item.
type DeploySpec struct {
	Name                string
	StorageProvisioning string
	DatastoreID         string
	ResourcePoolID      string
	FolderID            string
	HostID              string
}

// Deploy deploys the OVF library item and returns the reference of the new
// VM. All EULAs are accepted, matching the interactive wizard defaults.
func Deploy(ctx context.Context, rc *rest.Client, itemID string, spec DeploySpec) (*types.ManagedObjectReference, error) {
	deploy := vcenter.Deploy{
		DeploymentSpec: vcenter.DeploymentSpec{
			Name:                spec.Name,
			AcceptAllEULA:       true,
			StorageProvisioning: spec.StorageProvisioning,
			DefaultDatastoreID:  spec.DatastoreID,
		},
		Target: vcenter.Target{
			ResourcePoolID: spec.ResourcePoolID,
			FolderID:       spec.FolderID,
			HostID:         spec.HostID,
		},
	}

	ref, err := vcenter.NewManager(rc).DeployLibraryItem(ctx, itemID, deploy)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy the library item %s: %w", itemID, err)
	}
	return ref, nil
}
