package ctrlc

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lab5e/partfunk/pkg/kvstore"
)

// GetCommand reads a single key
type GetCommand struct {
	Key string `kong:"arg,required,help='Key to read'"`
}

// Run executes the get command
func (c *GetCommand) Run(args *RunContext) error {
	client := connectToCluster(args.ClientParams())
	if client == nil {
		return errStd
	}

	ctx, done := context.WithTimeout(context.Background(), gRPCTimeout)
	defer done()
	value, err := client.Get(ctx, c.Key)
	if errors.Is(err, kvstore.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Key %q not found\n", c.Key)
		return errStd
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading key: %v\n", err)
		return errStd
	}
	fmt.Println(value)
	return nil
}

// PutCommand writes a single key
type PutCommand struct {
	Key   string `kong:"arg,required,help='Key to write'"`
	Value string `kong:"arg,required,help='Value'"`
}

// Run executes the put command
func (c *PutCommand) Run(args *RunContext) error {
	client := connectToCluster(args.ClientParams())
	if client == nil {
		return errStd
	}

	ctx, done := context.WithTimeout(context.Background(), gRPCTimeout)
	defer done()
	if err := client.Put(ctx, c.Key, c.Value); err != nil {
		if errors.Is(err, kvstore.ErrNotOwner) {
			fmt.Fprintf(os.Stderr, "No node owns the key right now. Try again when the cluster has settled\n")
			return errStd
		}
		fmt.Fprintf(os.Stderr, "Error writing key: %v\n", err)
		return errStd
	}
	return nil
}
