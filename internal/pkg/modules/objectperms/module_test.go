// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package objectperms_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"

	"github.com/virtops/vsphere-automation-modules/internal/pkg/module"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/modules/objectperms"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/permissions"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcsimtest"
)

var _ = Describe("Module", func() {
	var (
		ctx    context.Context
		env    *vcsimtest.Env
		m      objectperms.Module
		logger *zap.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = zap.NewNop()

		var err error
		env, err = vcsimtest.Start(ctx)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(env.Stop)
	})

	grant := func(entity types.ManagedObjectReference, principal string, group bool, roleID int32) {
		am := object.NewAuthorizationManager(env.Client.Client)
		ExpectWithOffset(1, am.SetEntityPermissions(ctx, entity, []types.Permission{{
			Principal: principal,
			Group:     group,
			RoleId:    roleID,
			Propagate: true,
		}})).To(Succeed())
	}

	perms := func(r module.Result) []permissions.Permission {
		out, ok := r.Data["permissions"].([]permissions.Permission)
		ExpectWithOffset(1, ok).To(BeTrue())
		return out
	}

	It("gathers permissions on an object found by type and name", func() {
		vm, err := env.Finder.VirtualMachine(ctx, "DC0_H0_VM0")
		Expect(err).ToNot(HaveOccurred())
		grant(vm.Reference(), "VSPHERE.LOCAL\\ops", false, -1)

		r, err := m.Run(ctx, env.Session(), logger, module.Params{
			"object_name": "DC0_H0_VM0",
			"object_type": "VirtualMachine",
			"principal":   "VSPHERE.LOCAL\\ops",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Changed).To(BeFalse())

		got := perms(r)
		Expect(got).To(HaveLen(1))
		Expect(got[0].Principal).To(Equal("VSPHERE.LOCAL\\ops"))
		Expect(got[0].RoleName).To(Equal("Admin"))
	})

	It("gathers permissions via a managed object ID", func() {
		vm, err := env.Finder.VirtualMachine(ctx, "DC0_H0_VM0")
		Expect(err).ToNot(HaveOccurred())
		grant(vm.Reference(), "VSPHERE.LOCAL\\ops", false, -1)

		p, err := m.ArgSpec().Resolve(map[string]any{
			"hostname":    "vc.example.com",
			"username":    "u",
			"password":    "p",
			"moid":        vm.Reference().Value,
			"object_type": "VirtualMachine",
			"principal":   "VSPHERE.LOCAL\\ops",
		})
		Expect(err).ToNot(HaveOccurred())

		r, err := m.Run(ctx, env.Session(), logger, p)
		Expect(err).ToNot(HaveOccurred())
		Expect(perms(r)).To(HaveLen(1))
	})

	It("handles the root folder by name", func() {
		root := env.Client.ServiceContent.RootFolder
		grant(root, "VSPHERE.LOCAL\\auditors", true, -2)

		r, err := m.Run(ctx, env.Session(), logger, module.Params{
			"object_name": "rootFolder",
			"object_type": "Folder",
			"group":       "VSPHERE.LOCAL\\auditors",
		})
		Expect(err).ToNot(HaveOccurred())

		got := perms(r)
		Expect(got).To(HaveLen(1))
		Expect(got[0].IsGroup).To(BeTrue())
		Expect(got[0].RoleName).To(Equal("ReadOnly"))
	})

	It("filters to the requested principal", func() {
		vm, err := env.Finder.VirtualMachine(ctx, "DC0_H0_VM0")
		Expect(err).ToNot(HaveOccurred())
		grant(vm.Reference(), "VSPHERE.LOCAL\\ops", false, -1)
		grant(vm.Reference(), "VSPHERE.LOCAL\\other", false, -2)

		r, err := m.Run(ctx, env.Session(), logger, module.Params{
			"object_name": "DC0_H0_VM0",
			"object_type": "VirtualMachine",
			"principal":   "VSPHERE.LOCAL\\other",
		})
		Expect(err).ToNot(HaveOccurred())

		got := perms(r)
		Expect(got).To(HaveLen(1))
		Expect(got[0].RoleName).To(Equal("ReadOnly"))
	})

	It("warns about distributed switch targets", func() {
		r, err := m.Run(ctx, env.Session(), logger, module.Params{
			"object_name": "DVS0",
			"object_type": "DistributedVirtualSwitch",
			"principal":   "VSPHERE.LOCAL\\ops",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Warnings).To(HaveLen(1))
		Expect(r.Warnings[0]).To(ContainSubstring("Distributed vSwitch"))
	})

	It("fails for a missing object", func() {
		_, err := m.Run(ctx, env.Session(), logger, module.Params{
			"object_name": "no-such-vm",
			"object_type": "VirtualMachine",
			"principal":   "VSPHERE.LOCAL\\ops",
		})
		Expect(err).To(MatchError(ContainSubstring("failed to find the object no-such-vm of type VirtualMachine")))
	})

	Describe("ArgSpec", func() {
		withConn := func(raw map[string]any) map[string]any {
			raw["hostname"] = "vc.example.com"
			raw["username"] = "u"
			raw["password"] = "p"
			return raw
		}

		It("requires an object name or moid", func() {
			_, err := m.ArgSpec().Resolve(withConn(map[string]any{"principal": "x"}))
			Expect(err).To(MatchError(ContainSubstring("one of the following is required: object_name, moid")))
		})

		It("rejects object name and moid together", func() {
			_, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"object_name": "a", "moid": "b", "principal": "x",
			}))
			Expect(err).To(MatchError(ContainSubstring("mutually exclusive")))
		})

		It("rejects principal and group together", func() {
			_, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"object_name": "a", "principal": "x", "group": "y",
			}))
			Expect(err).To(MatchError(ContainSubstring("mutually exclusive")))
		})

		It("rejects an invalid object type", func() {
			_, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"object_name": "a", "object_type": "Fridge", "principal": "x",
			}))
			Expect(err).To(MatchError(ContainSubstring("value of object_type must be one of")))
		})

		It("accepts a moid without an object name", func() {
			p, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"moid": "vm-42", "principal": "x",
			}))
			Expect(err).ToNot(HaveOccurred())
			Expect(p.String("moid")).To(Equal("vm-42"))
			Expect(p.String("object_type")).To(Equal("Folder"))
		})

		It("defaults the object type to Folder", func() {
			p, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"object_name": "a", "principal": "x",
			}))
			Expect(err).ToNot(HaveOccurred())
			Expect(p.String("object_type")).To(Equal("Folder"))
			Expect(p.Bool("inherited")).To(BeFalse())
		})
	})
})
