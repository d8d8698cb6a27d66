package ctrlc
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
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// StatusCommand shows the node status
type StatusCommand struct {
	Partitions bool `kong:"help='List the partitions held by the node',short='p'"`
}

// Run executes the status command
func (c *StatusCommand) Run(args *RunContext) error {
	client := connectToCluster(args.ClientParams())
	if client == nil {
		return errStd
	}

	ctx, done := context.WithTimeout(context.Background(), gRPCTimeout)
	defer done()
	res, err := client.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving status: %v\n", err)
		return errStd
	}
	keys := 0
	for _, v := range res.Partitions {
		keys += v.Keys
	}
	fmt.Printf("Node ID:      %s\n", res.NodeID)
	fmt.Printf("Endpoint:     %s\n", res.Endpoint)
	fmt.Printf("Epoch:        %d\n", res.Epoch)
	fmt.Printf("Nodes:        %d (%s)\n", len(res.Nodes), strings.Join(res.Nodes, ", "))
	fmt.Printf("Partitions:   %d of %d, %d keys\n", len(res.Partitions), res.PartitionCount, keys)
	if len(res.Pending) > 0 {
		fmt.Printf("Pending:      %v\n", res.Pending)
	}

	if c.Partitions {
		table := tabwriter.NewWriter(os.Stdout, 1, 3, 1, ' ', 0)
		table.Write([]byte("\nPartition\tKeys\n"))
		for _, v := range res.Partitions {
			table.Write([]byte(fmt.Sprintf("%d\t%d\n", v.ID, v.Keys)))
		}
		table.Flush()
	}
	return nil
}
