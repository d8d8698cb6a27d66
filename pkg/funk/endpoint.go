package funk

//
//Copyright 2019 Telenor Digital AS
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//http://www.apache.org/licenses/LICENSE-2.0
//
//Unless required by applicable law or agreed to in writing, software
//distributed under the License is distributed on an "AS IS" BASIS,
//WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//See the License for the specific language governing permissions and
//limitations under the License.
//
import (
	"net"
	"strings"

	"github.com/lab5e/gotoolbox/netutils"
)

// Endpoint is a service endpoint published as a tag by a cluster member
type Endpoint struct {
	NodeID        string // Member that published the endpoint
	Name          string // Tag name, ie ep.partfunk
	ListenAddress string // host:port other members can reach
	Local         bool   // Published by this node
}

// Kind is the endpoint name without the tag prefix. It's also the kind used
// when the endpoint is announced via zeroconf.
func (e Endpoint) Kind() string {
	return ZeroconfKind(e.Name)
}

// ZeroconfKind returns the zeroconf kind used for an endpoint
func ZeroconfKind(endpointName string) string {
	return strings.TrimPrefix(endpointName, EndpointPrefix)
}

// ToPublicEndpoint turns a listen address into one the other members can
// reach. Unspecified hosts (blank, 0.0.0.0 or ::) are replaced with the
// public IPv4 address of the host.
func ToPublicEndpoint(listenHostPort string) (string, error) {
	host, port, err := net.SplitHostPort(listenHostPort)
	if err != nil {
		return listenHostPort, err
	}
	if host != "" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsUnspecified() {
			return listenHostPort, nil
		}
	}
	ip, err := netutils.FindPublicIPv4()
	if err != nil {
		return listenHostPort, err
	}
	return net.JoinHostPort(ip.String(), port), nil
}
