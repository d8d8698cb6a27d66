package ctrlc

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RebalanceCommand runs a rebalance pass on the node
type RebalanceCommand struct {
}

// Run executes the rebalance command
func (c *RebalanceCommand) Run(args *RunContext) error {
	client := connectToCluster(args.ClientParams())
	if client == nil {
		return errStd
	}

	ctx, done := context.WithTimeout(context.Background(), gRPCTimeout)
	defer done()
	res, err := client.Rebalance(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running rebalance: %v\n", err)
		return errStd
	}
	fmt.Printf("Epoch %d completed in %s\n", res.Epoch, time.Duration(res.DurationMs)*time.Millisecond)
	fmt.Printf("Created:      %d\n", len(res.Created))
	fmt.Printf("Retained:     %d\n", res.Retained)
	fmt.Printf("Detached:     %d\n", len(res.Detached))
	fmt.Printf("Transferred:  %d\n", len(res.Transferred))
	fmt.Printf("Restored:     %d\n", len(res.Restored))
	if len(res.Abandoned) > 0 {
		fmt.Printf("Abandoned:    %v\n", res.Abandoned)
	}
	if len(res.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "%d transfers failed:\n", len(res.Failures))
		for _, v := range res.Failures {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		return errStd
	}
	return nil
}
