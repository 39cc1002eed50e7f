// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package vcenter

import (
	"context"
	"errors"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
)

// FindVirtualMachine looks up a VM by name under the finder's datacenter.
// A missing VM is not an error: the result is nil, nil.
func FindVirtualMachine(ctx context.Context, finder *find.Finder, name string) (*object.VirtualMachine, error) {
	vm, err := finder.VirtualMachine(ctx, name)
	if err != nil {
		var nfe *find.NotFoundError
		if errors.As(err, &nfe) {
			return nil, nil
		}
		return nil, err
	}
	return vm, nil
}
