// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package vcsimtest runs package tests against a simulated vCenter, with the
// vAPI endpoints registered so content library calls work too.
package vcsimtest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/simulator"
	"github.com/vmware/govmomi/vapi/library"
	"github.com/vmware/govmomi/vapi/rest"
	_ "github.com/vmware/govmomi/vapi/simulator" // registers vAPI endpoints
	"github.com/vmware/govmomi/vim25/soap"

	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcclient"
)

// Env is one simulated vCenter with authenticated SOAP and REST sessions.
type Env struct {
	Model  *simulator.Model
	Server *simulator.Server
	Client *govmomi.Client
	Rest   *rest.Client
	Finder *find.Finder
}

// Start creates a VPX model simulator and logs in.
func Start(ctx context.Context) (*Env, error) {
	model := simulator.VPX()
	if err := model.Create(); err != nil {
		return nil, fmt.Errorf("failed to create vcsim model: %w", err)
	}

	model.Service.TLS = new(tls.Config)
	model.Service.RegisterEndpoints = true
	server := model.Service.NewServer()

	client, err := govmomi.NewClient(ctx, server.URL, true)
	if err != nil {
		server.Close()
		model.Remove()
		return nil, fmt.Errorf("failed to connect to vcsim: %w", err)
	}

	rc := rest.NewClient(client.Client)
	if err := rc.Login(ctx, simulator.DefaultLogin); err != nil {
		server.Close()
		model.Remove()
		return nil, fmt.Errorf("failed to log in to vcsim vAPI: %w", err)
	}

	finder := find.NewFinder(client.Client)
	dc, err := finder.DefaultDatacenter(ctx)
	if err != nil {
		server.Close()
		model.Remove()
		return nil, err
	}
	finder.SetDatacenter(dc)

	return &Env{
		Model:  model,
		Server: server,
		Client: client,
		Rest:   rc,
		Finder: finder,
	}, nil
}

// Stop tears the simulator down.
func (e *Env) Stop() {
	e.Server.Close()
	e.Model.Remove()
}

// Session wraps the simulator clients in the session type modules consume.
func (e *Env) Session() *vcclient.Session {
	return &vcclient.Session{Client: e.Client, Rest: e.Rest}
}

// CreateLibrary creates a local content library backed by the default
// datastore and returns its ID.
func (e *Env) CreateLibrary(ctx context.Context, name string) (string, error) {
	ds, err := e.Finder.DefaultDatastore(ctx)
	if err != nil {
		return "", err
	}

	return library.NewManager(e.Rest).CreateLibrary(ctx, library.Library{
		Name: name,
		Type: "LOCAL",
		Storage: []library.StorageBacking{{
			DatastoreID: ds.Reference().Value,
			Type:        "DATASTORE",
		}},
	})
}

// CreateOVFItem creates an OVF library item carrying MinimalOVF as its
// descriptor and returns the item ID.
func (e *Env) CreateOVFItem(ctx context.Context, libraryID, name string) (string, error) {
	m := library.NewManager(e.Rest)

	itemID, err := m.CreateLibraryItem(ctx, library.Item{
		Name:      name,
		Type:      library.ItemTypeOVF,
		LibraryID: libraryID,
	})
	if err != nil {
		return "", err
	}

	sessionID, err := m.CreateLibraryItemUpdateSession(ctx, library.Session{LibraryItemID: itemID})
	if err != nil {
		return "", err
	}

	update, err := m.AddLibraryItemFile(ctx, sessionID, library.UpdateFile{
		Name:       name + ".ovf",
		SourceType: "PUSH",
		Size:       int64(len(MinimalOVF)),
	})
	if err != nil {
		return "", err
	}

	u, err := url.Parse(update.UploadEndpoint.URI)
	if err != nil {
		return "", err
	}

	p := soap.DefaultUpload
	p.ContentLength = int64(len(MinimalOVF))
	if err := m.Client.Upload(ctx, strings.NewReader(MinimalOVF), u, &p); err != nil {
		return "", err
	}

	if err := m.CompleteLibraryItemUpdateSession(ctx, sessionID); err != nil {
		return "", err
	}

	return itemID, nil
}
