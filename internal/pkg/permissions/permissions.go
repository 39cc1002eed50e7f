// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package permissions reads permission assignments from the vCenter
// authorization manager.
package permissions

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/types"
)

// Permission is one principal-to-role assignment on a managed object.
type Permission struct {
	Principal string `json:"principal"`
	IsGroup   bool   `json:"is_group"`
	RoleID    int32  `json:"role_id"`
	RoleName  string `json:"role_name"`
	Propagate bool   `json:"propagate"`
}

// Manager queries entity permissions.
type Manager struct {
	am *object.AuthorizationManager
}

// NewManager returns a Manager for the vim session.
func NewManager(c *vim25.Client) *Manager {
	return &Manager{am: object.NewAuthorizationManager(c)}
}

// OnEntity returns the permissions assigned on the entity, with role IDs
// resolved to role names. When inherited is true, permissions propagated
// from ancestors are included.
func (m *Manager) OnEntity(ctx context.Context, entity types.ManagedObjectReference, inherited bool) ([]Permission, error) {
	perms, err := m.am.RetrieveEntityPermissions(ctx, entity, inherited)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve permissions on %s: %w", entity.Value, err)
	}

	roles, err := m.am.RoleList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorization roles: %w", err)
	}
	names := make(map[int32]string, len(roles))
	for _, r := range roles {
		names[r.RoleId] = r.Name
	}

	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		out = append(out, Permission{
			Principal: p.Principal,
			IsGroup:   p.Group,
			RoleID:    p.RoleId,
			RoleName:  names[p.RoleId],
			Propagate: p.Propagate,
		})
	}
	return out, nil
}

// ForPrincipal filters permissions down to one user or group name.
func ForPrincipal(perms []Permission, name string, isGroup bool) []Permission {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p.Principal == name && p.IsGroup == isGroup {
			out = append(out, p)
		}
	}
	return out
}
