package serverfunk

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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/lab5e/partfunk/pkg/kvstore"
	"github.com/lab5e/partfunk/pkg/kvwire"
)

// Locator finds the owners of keys
type Locator interface {
	// OwnerEndpoint returns the partition service endpoint of the node that
	// owns the key's partition. A blank string is returned if the owner or
	// its endpoint is unknown.
	OwnerEndpoint(key string) string

	// Nodes returns the nodes in the current partition assignment
	Nodes() []string
}

// PartitionServer is the gRPC frontend for the local partition store. It
// serves client reads and writes and receives partitions from other nodes.
type PartitionServer struct {
	nodeID      string
	endpoint    string
	store       *kvstore.LocalStore
	receiver    *kvstore.ReceiptHandler
	coordinator *kvstore.Coordinator
	locator     Locator
}

// NewPartitionServer creates a new server
func NewPartitionServer(nodeID string, store *kvstore.LocalStore, receiver *kvstore.ReceiptHandler, coordinator *kvstore.Coordinator, locator Locator) *PartitionServer {
	return &PartitionServer{
		nodeID:      nodeID,
		store:       store,
		receiver:    receiver,
		coordinator: coordinator,
		locator:     locator,
	}
}

// SetEndpoint sets the server's own endpoint. It's reported in the status
// and never returned as a redirect.
func (s *PartitionServer) SetEndpoint(endpoint string) {
	s.endpoint = endpoint
}

// toStatus converts store errors into gRPC errors. NotOwner errors carry the
// owner's endpoint as a trailer when it is known.
func (s *PartitionServer) toStatus(ctx context.Context, key string, err error) error {
	switch {
	case errors.Is(err, kvstore.ErrNotOwner):
		if owner := s.locator.OwnerEndpoint(key); owner != "" && owner != s.endpoint {
			if err := grpc.SetTrailer(ctx, metadata.Pairs(kvwire.OwnerMetadataKey, owner)); err != nil {
				log.WithError(err).Debug("Unable to set owner trailer")
			}
		}
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, kvstore.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, kvstore.ErrInvalidPartition):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, kvstore.ErrRebalanceConflict):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Get reads a key from the local store
func (s *PartitionServer) Get(ctx context.Context, req *kvwire.GetRequest) (*kvwire.GetResponse, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	v, err := s.store.Get(req.Key)
	if err != nil {
		return nil, s.toStatus(ctx, req.Key, err)
	}
	return &kvwire.GetResponse{Value: v}, nil
}

// Put writes a key to the local store
func (s *PartitionServer) Put(ctx context.Context, req *kvwire.PutRequest) (*kvwire.Empty, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	if err := s.store.Put(req.Key, req.Value); err != nil {
		return nil, s.toStatus(ctx, req.Key, err)
	}
	return &kvwire.Empty{}, nil
}

// Transfer installs a partition handed off from another node
func (s *PartitionServer) Transfer(ctx context.Context, req *kvwire.TransferRequest) (*kvwire.Empty, error) {
	if err := s.receiver.OnPartitionReceived(req.Payload()); err != nil {
		return nil, s.toStatus(ctx, "", err)
	}
	return &kvwire.Empty{}, nil
}

// Status returns the local node's view of the cluster
func (s *PartitionServer) Status(ctx context.Context, req *kvwire.Empty) (*kvwire.StatusResponse, error) {
	ret := &kvwire.StatusResponse{
		NodeID:         s.nodeID,
		Endpoint:       s.endpoint,
		Epoch:          s.coordinator.Epoch(),
		PartitionCount: s.store.PartitionCount(),
		Nodes:          s.locator.Nodes(),
		Pending:        s.coordinator.Pending(),
	}
	for _, p := range s.store.Partitions() {
		ret.Partitions = append(ret.Partitions, kvwire.PartitionInfo{ID: p, Keys: s.store.Len(p)})
	}
	return ret, nil
}

// Rebalance runs a rebalance pass on the local node. Failed handoffs are
// reported in the response, not as an error.
func (s *PartitionServer) Rebalance(ctx context.Context, req *kvwire.Empty) (*kvwire.RebalanceResponse, error) {
	result, err := s.coordinator.Rebalance(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "", err)
	}
	return kvwire.NewRebalanceResponse(result), nil
}
