// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package deployovf_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/virtops/vsphere-automation-modules/internal/pkg/module"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/modules/deployovf"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcsimtest"
)

var _ = Describe("Module", func() {
	var (
		ctx    context.Context
		env    *vcsimtest.Env
		m      deployovf.Module
		logger *zap.Logger
		params module.Params
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = zap.NewNop()

		var err error
		env, err = vcsimtest.Start(ctx)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(env.Stop)

		libID, err := env.CreateLibrary(ctx, "templates")
		Expect(err).ToNot(HaveOccurred())
		_, err = env.CreateOVFItem(ctx, libID, "rhel-template")
		Expect(err).ToNot(HaveOccurred())

		params = module.Params{
			"name":                 "web01",
			"template":             "rhel-template",
			"datacenter":           "DC0",
			"datastore":            "LocalDS_0",
			"folder":               "vm",
			"cluster":              "DC0_C0",
			"storage_provisioning": "thin",
		}
	})

	Describe("Run", func() {
		It("deploys the VM and reports its ID", func() {
			r, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Changed).To(BeTrue())
			Expect(r.Msg).To(Equal("Deployed Virtual Machine 'web01'."))
			Expect(r.Data["vm_id"]).ToNot(BeEmpty())

			vm, err := env.Finder.VirtualMachine(ctx, "web01")
			Expect(err).ToNot(HaveOccurred())
			Expect(vm.Reference().Value).To(Equal(r.Data["vm_id"]))
		})

		It("is idempotent on the VM name", func() {
			r, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Changed).To(BeTrue())

			again, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(again.Changed).To(BeFalse())
			Expect(again.Msg).To(Equal("Virtual Machine 'web01' already exists."))
			Expect(again.Data["vm_id"]).To(Equal(r.Data["vm_id"]))
		})

		It("scopes the item search to the named library", func() {
			params["library"] = "templates"
			r, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Changed).To(BeTrue())
		})

		It("fails for a missing datacenter", func() {
			params["datacenter"] = "no-such-dc"
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the datacenter no-such-dc")))
		})

		It("fails for a missing datastore", func() {
			params["datastore"] = "no-such-ds"
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the datastore no-such-ds")))
		})

		It("fails when neither datastore nor datastore cluster resolves", func() {
			delete(params, "datastore")
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the datastore using either datastore or datastore cluster")))
		})

		It("fails for a missing library item", func() {
			params["template"] = "no-such-template"
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the library item no-such-template")))
		})

		It("fails for a missing library", func() {
			params["library"] = "no-such-library"
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the content library no-such-library")))
		})

		It("fails for a missing folder", func() {
			params["folder"] = "no-such-folder"
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the folder no-such-folder")))
		})

		It("fails for a missing host", func() {
			params["host"] = "no-such-host"
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the host no-such-host")))
		})

		It("fails when no resource pool can be derived", func() {
			delete(params, "cluster")
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find a resource pool either by name or cluster")))
		})

		It("fails for a missing cluster", func() {
			params["cluster"] = "no-such-cluster"
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).To(MatchError(ContainSubstring("failed to find the cluster no-such-cluster")))
		})
	})

	Describe("Check", func() {
		It("reports the intended deployment without performing it", func() {
			r, err := m.Check(ctx, env.Session(), logger, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Changed).To(BeTrue())
			Expect(r.Data["desired_operation"]).To(Equal("Create VM with PowerOff State"))

			vm, err := env.Finder.VirtualMachine(ctx, "web01")
			Expect(err).To(HaveOccurred())
			Expect(vm).To(BeNil())
		})

		It("short-circuits when the VM already exists", func() {
			_, err := m.Run(ctx, env.Session(), logger, params)
			Expect(err).ToNot(HaveOccurred())

			r, err := m.Check(ctx, env.Session(), logger, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Changed).To(BeFalse())
			Expect(r.Msg).To(Equal("Virtual Machine 'web01' already exists."))
		})
	})

	Describe("ArgSpec", func() {
		withConn := func(raw map[string]any) map[string]any {
			raw["hostname"] = "vc.example.com"
			raw["username"] = "u"
			raw["password"] = "p"
			return raw
		}

		It("requires a datastore or a datastore cluster", func() {
			_, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"name": "x", "template": "t", "datacenter": "dc",
			}))
			Expect(err).To(MatchError(ContainSubstring("one of the following is required: datastore, datastore_cluster")))
		})

		It("accepts the ovf alias and defaults the folder", func() {
			p, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"name": "x", "ovf": "t", "datacenter": "dc", "datastore": "ds",
			}))
			Expect(err).ToNot(HaveOccurred())
			Expect(p.String("template")).To(Equal("t"))
			Expect(p.String("folder")).To(Equal("vm"))
			Expect(p.String("storage_provisioning")).To(Equal("thin"))
		})

		It("rejects an unknown storage provisioning type", func() {
			_, err := m.ArgSpec().Resolve(withConn(map[string]any{
				"name": "x", "template": "t", "datacenter": "dc", "datastore": "ds",
				"storage_provisioning": "raw",
			}))
			Expect(err).To(MatchError(ContainSubstring("storage_provisioning")))
		})
	})
})
