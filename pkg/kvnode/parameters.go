package kvnode

import (
	"github.com/lab5e/partfunk/pkg/funk"
	"github.com/lab5e/partfunk/pkg/kvstore"
)

// Parameters is the configuration for a partition node.
// The struct uses annotations from Kong (https://github.com/alecthomas/kong)
type Parameters struct {
	Cluster    funk.Parameters    `kong:"embed"`
	Rebalance  kvstore.Parameters `kong:"embed,prefix='rebalance-'"`
	Metrics    string             `kong:"help='Metrics sink to use',enum='prometheus,none',default='prometheus'"`
	Monitoring string             `kong:"help='HTTP endpoint for /metrics and /statusws. Monitoring is off when blank'"`
}

// Final sets the defaults for the parameters that aren't set.
func (p *Parameters) Final() {
	p.Cluster.Final()
	p.Rebalance.Final()
}
