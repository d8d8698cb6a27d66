package ctrlc

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lab5e/partfunk/pkg/funk"
	"github.com/lab5e/partfunk/pkg/toolbox"
)

// DiagnosticsCommand lists the zeroconf registrations for the cluster
type DiagnosticsCommand struct {
	Wait time.Duration `kong:"help='Time to listen for each kind of registration',default='2s'"`
}

// Run executes the diagnostics command
func (c *DiagnosticsCommand) Run(args *RunContext) error {
	params := args.ClientParams()
	if !params.Zeroconf {
		fmt.Fprintf(os.Stderr, "Zeroconf is disabled\n")
		return errStd
	}
	registry := toolbox.NewZeroconfRegistry(params.Name)

	fmt.Printf("Zeroconf lookup for cluster %s (%s per kind)...\n", params.Name, c.Wait)
	table := tabwriter.NewWriter(os.Stdout, 1, 3, 1, ' ', 0)
	table.Write([]byte("Kind\tEndpoint\n"))
	for _, kind := range []string{
		funk.ZeroconfSerfKind,
		funk.ZeroconfKind(funk.PartitionEndpoint),
		funk.ZeroconfKind(funk.MonitoringEndpoint),
	} {
		endpoints, err := registry.Resolve(kind, c.Wait)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error browsing zeroconf: %v\n", err)
			return errStd
		}
		for _, ep := range endpoints {
			table.Write([]byte(fmt.Sprintf("%s\t%s\n", kind, ep)))
		}
	}
	table.Flush()
	return nil
}
