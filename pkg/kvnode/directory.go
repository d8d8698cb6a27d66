package kvnode

import (
	"fmt"

	"github.com/lab5e/partfunk/pkg/funk"
	"github.com/lab5e/partfunk/pkg/funk/sharding"
)

// directory resolves node IDs and keys into partition service endpoints.
// The endpoints are the ones the nodes publish as Serf tags.
type directory struct {
	cluster    funk.Cluster
	assignment *sharding.Assignment
}

func (d *directory) TransferAddress(nodeID string) (string, error) {
	ep := d.cluster.GetEndpoint(nodeID, funk.PartitionEndpoint)
	if ep == "" {
		return "", fmt.Errorf("no partition endpoint for node %s", nodeID)
	}
	return ep, nil
}

func (d *directory) OwnerEndpoint(key string) string {
	owner := d.assignment.OwnerOf(d.assignment.PartitionOf(key))
	if owner == "" {
		return ""
	}
	return d.cluster.GetEndpoint(owner, funk.PartitionEndpoint)
}

func (d *directory) Nodes() []string {
	return d.assignment.Nodes()
}

// partitionNodes filters the members down to the ones that serve the
// partition service. Nodes that haven't published the endpoint yet don't
// get any partitions.
func (d *directory) partitionNodes(members []string) (nodes []string, endpoints []string) {
	for _, m := range members {
		ep := d.cluster.GetEndpoint(m, funk.PartitionEndpoint)
		if ep == "" {
			continue
		}
		nodes = append(nodes, m)
		endpoints = append(endpoints, ep)
	}
	return nodes, endpoints
}
