package clientfunk

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
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/lab5e/partfunk/pkg/kvstore"
	"github.com/lab5e/partfunk/pkg/kvwire"
)

// Client is a client for the key value store. Requests are sent to a
// single node. If the node doesn't own the key the request is redirected
// once to the owner.
type Client struct {
	endpoint    string
	connections *Connections
}

// NewClient creates a new client that sends requests to the endpoint
func NewClient(endpoint string, connections *Connections) *Client {
	return &Client{endpoint: endpoint, connections: connections}
}

func (c *Client) client(endpoint string) (*kvwire.PartitionServiceClient, error) {
	conn, err := c.connections.GetConnection(endpoint)
	if err != nil {
		return nil, err
	}
	return kvwire.NewPartitionServiceClient(conn), nil
}

// withRedirect runs the call against the endpoint and repeats it once on
// the owner's endpoint if the node replies with NotOwner.
func (c *Client) withRedirect(call func(client *kvwire.PartitionServiceClient, opts ...grpc.CallOption) error) error {
	client, err := c.client(c.endpoint)
	if err != nil {
		return err
	}
	var trailer metadata.MD
	err = FromStatus(call(client, grpc.Trailer(&trailer)))
	if !errors.Is(err, kvstore.ErrNotOwner) {
		return err
	}
	owner := ownerFromTrailer(trailer)
	if owner == "" || owner == c.endpoint {
		return err
	}
	log.WithFields(log.Fields{
		"from": c.endpoint,
		"to":   owner,
	}).Debug("Redirecting request to owner")
	client, err = c.client(owner)
	if err != nil {
		return err
	}
	return FromStatus(call(client))
}

// Get reads a key. ErrNotFound is returned if the key doesn't exist and
// ErrNotOwner if the owner couldn't be reached.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var ret string
	err := c.withRedirect(func(client *kvwire.PartitionServiceClient, opts ...grpc.CallOption) error {
		resp, err := client.Get(ctx, &kvwire.GetRequest{Key: key}, opts...)
		if err != nil {
			return err
		}
		ret = resp.Value
		return nil
	})
	return ret, err
}

// Put writes a key
func (c *Client) Put(ctx context.Context, key, value string) error {
	return c.withRedirect(func(client *kvwire.PartitionServiceClient, opts ...grpc.CallOption) error {
		_, err := client.Put(ctx, &kvwire.PutRequest{Key: key, Value: value}, opts...)
		return err
	})
}

// Status returns the status of the node
func (c *Client) Status(ctx context.Context) (*kvwire.StatusResponse, error) {
	client, err := c.client(c.endpoint)
	if err != nil {
		return nil, err
	}
	ret, err := client.Status(ctx, &kvwire.Empty{})
	if err != nil {
		return nil, FromStatus(err)
	}
	return ret, nil
}

// Rebalance runs a rebalance pass on the node
func (c *Client) Rebalance(ctx context.Context) (*kvwire.RebalanceResponse, error) {
	client, err := c.client(c.endpoint)
	if err != nil {
		return nil, err
	}
	ret, err := client.Rebalance(ctx, &kvwire.Empty{})
	if err != nil {
		return nil, FromStatus(err)
	}
	return ret, nil
}
