// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

// mDNS service registration
const (
	ServiceType = "_nfcmanager._tcp"
	Domain      = "local."
)

// Advertise registers the bridge on the local network so clients can find
// it without configuration. Call Shutdown on the result to withdraw it.
func Advertise(name string, port int) (*zeroconf.Server, error) {
	txt := []string{
		"version=1",
		"protocol=websocket",
		"path=/ws",
	}
	server, err := zeroconf.Register(name, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return server, nil
}
