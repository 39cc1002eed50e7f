// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package vcenter

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/mo"
)

// RecommendedDatastore picks the member of the datastore cluster with the
// most free space.
func RecommendedDatastore(ctx context.Context, c *vim25.Client, pod *object.StoragePod) (*object.Datastore, error) {
	var p mo.StoragePod
	if err := pod.Properties(ctx, pod.Reference(), []string{"childEntity"}, &p); err != nil {
		return nil, fmt.Errorf("failed to read datastore cluster %s: %w", pod.Name(), err)
	}

	if len(p.ChildEntity) == 0 {
		return nil, fmt.Errorf("datastore cluster %s has no datastores", pod.Name())
	}

	var members []mo.Datastore
	pc := property.DefaultCollector(c)
	if err := pc.Retrieve(ctx, p.ChildEntity, []string{"summary"}, &members); err != nil {
		return nil, fmt.Errorf("failed to read datastores of cluster %s: %w", pod.Name(), err)
	}

	best := mostFreeSpace(members)
	if best == nil {
		return nil, fmt.Errorf("no usable datastore in cluster %s", pod.Name())
	}

	return object.NewDatastore(c, best.Reference()), nil
}

func mostFreeSpace(members []mo.Datastore) *mo.Datastore {
	var best *mo.Datastore
	for i := range members {
		s := members[i].Summary
		if !s.Accessible {
			continue
		}
		if best == nil || s.FreeSpace > best.Summary.FreeSpace {
			best = &members[i]
		}
	}
	return best
}
