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
	"fmt"
)

// NodeState is the state of the local cluster node
type NodeState int32

// These are the possible states of the local node
const (
	Invalid     NodeState = iota // Invalid or unknown state
	Starting                     // Starting the node
	Operational                  // Operational, normal operation
	Stopping                     // Stopping the node
)

func (n NodeState) String() string {
	switch n {
	case Invalid:
		return "Invalid"
	case Starting:
		return "Starting"
	case Operational:
		return "Operational"
	case Stopping:
		return "Stopping"
	default:
		panic(fmt.Sprintf("Unknown state: %d", n))
	}
}

// Event is emitted by the cluster when the local state or the membership
// changes. Events are coalesced; a slow reader only sees the latest event.
type Event struct {
	State NodeState // State is the state of the local cluster node
	Nodes []string  // Nodes is the sorted list of members at the time of the event
}

// Cluster is the membership view of the local node. Membership is managed
// by Serf and endpoints are published as Serf tags.
type Cluster interface {
	// NodeID is the local cluster node's ID
	NodeID() string

	// Name returns the cluster's name
	Name() string

	// Start launches the cluster, ie joins a Serf cluster and announces its
	// presence
	Start() error

	// Stop stops the cluster
	Stop()

	// State is the current cluster state
	State() NodeState

	// Events returns an event channel for the cluster. The channel will
	// be closed when the cluster is stopped. Only the latest event is kept
	// in the channel so readers never block the cluster.
	Events() <-chan Event

	// SetEndpoint registers an endpoint on the local node
	SetEndpoint(name string, endpoint string)

	// Nodes returns a sorted list of the node IDs of each live member
	Nodes() []string

	// Endpoints returns all endpoints published by the live members, sorted
	// by node ID and endpoint name
	Endpoints() []Endpoint

	// GetEndpoint returns the endpoint for a particular node. If the node
	// or endpoint isn't found it will return a blank. The endpoint is
	// retrieved from the Serf cluster. Note that there's no guarantee
	// that the node will be responding on that endpoint.
	GetEndpoint(nodeID string, endpointName string) string
}

// EndpointPrefix is the prefix for endpoint tags
const EndpointPrefix = "ep."

// Endpoint names published by the nodes
const (
	SerfEndpoint       = "ep.serf"
	PartitionEndpoint  = "ep.partfunk"    // gRPC endpoint for the partition service
	MonitoringEndpoint = "ep.monitoring" // HTTP endpoint with /metrics and /statusws
)

// ZeroconfSerfKind is the type used to register serf endpoints in zeroconf.
const ZeroconfSerfKind = "serf"
