package clientfunk

import (
	"time"

	"github.com/lab5e/partfunk/pkg/funk"
	"github.com/lab5e/partfunk/pkg/toolbox"
)

// ZeroconfLookup returns the partition service endpoint of one of the nodes
// in the cluster. A blank endpoint is returned if no nodes are found.
func ZeroconfLookup(clusterName string) (string, error) {
	zr := toolbox.NewZeroconfRegistry(clusterName)
	return zr.ResolveFirst(funk.ZeroconfKind(funk.PartitionEndpoint), 1*time.Second)
}
