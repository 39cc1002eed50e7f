// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package module

import "github.com/virtops/vsphere-automation-modules/internal/pkg/vcclient"

// Connection extracts the vCenter connection config from resolved parameters.
func (p Params) Connection() vcclient.Config {
	return vcclient.Config{
		Hostname:      p.String("hostname"),
		Port:          p.Int("port"),
		Username:      p.String("username"),
		Password:      p.String("password"),
		ValidateCerts: p.Bool("validate_certs"),
	}
}
