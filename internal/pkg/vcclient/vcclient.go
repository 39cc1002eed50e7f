// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package vcclient brings up the vCenter API sessions a module invocation
// needs: one vim25 (SOAP) session and one vAPI (REST) session on top of it.
package vcclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/vapi/rest"
	"github.com/vmware/govmomi/vim25/soap"
	"go.uber.org/zap"
)

// Config carries the connection parameters shared by every module.
type Config struct {
	Hostname      string
	Port          int
	Username      string
	Password      string
	ValidateCerts bool
}

// Session is an authenticated pair of vCenter API clients.
type Session struct {
	Client *govmomi.Client
	Rest   *rest.Client
}

// Connect logs in to vCenter over SOAP and REST. The returned session must be
// closed with Close.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.Hostname == "" {
		return nil, fmt.Errorf("hostname is not set")
	}

	port := cfg.Port
	if port == 0 {
		port = 443
	}

	u, err := soap.ParseURL(net.JoinHostPort(cfg.Hostname, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("invalid vCenter address %s: %w", cfg.Hostname, err)
	}
	u.User = url.UserPassword(cfg.Username, cfg.Password)

	logger.Debug("connecting to vCenter",
		zap.String("host", cfg.Hostname),
		zap.Int("port", port),
		zap.Bool("validate_certs", cfg.ValidateCerts))

	c, err := govmomi.NewClient(ctx, u, !cfg.ValidateCerts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u.Host, err)
	}

	rc := rest.NewClient(c.Client)
	if err := rc.Login(ctx, u.User); err != nil {
		_ = c.Logout(ctx)
		return nil, fmt.Errorf("REST login failed for %s: %w", u.Host, err)
	}

	return &Session{Client: c, Rest: rc}, nil
}

// Finder returns a fresh inventory finder for the session.
func (s *Session) Finder() *find.Finder {
	return find.NewFinder(s.Client.Client)
}

// Close terminates both sessions. Safe to call on a nil session.
func (s *Session) Close(ctx context.Context) {
	if s == nil {
		return
	}
	if s.Rest != nil {
		_ = s.Rest.Logout(ctx)
	}
	if s.Client != nil {
		_ = s.Client.Logout(ctx)
	}
}
