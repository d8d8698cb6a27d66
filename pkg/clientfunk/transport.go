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
	"fmt"

	"github.com/lab5e/partfunk/pkg/kvstore"
	"github.com/lab5e/partfunk/pkg/kvwire"
)

// Transport delivers partitions to other nodes through the Transfer method
// of the partition service.
type Transport struct {
	connections *Connections
}

// NewTransport creates a new transport that uses the connection cache
func NewTransport(connections *Connections) *Transport {
	return &Transport{connections: connections}
}

// Send delivers the payload to the node listening on address. Large
// partitions are split into several messages.
func (t *Transport) Send(ctx context.Context, address string, payload kvstore.TransferPayload) error {
	conn, err := t.connections.GetConnection(address)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", address, err)
	}
	client := kvwire.NewPartitionServiceClient(conn)
	if _, err := client.Transfer(ctx, kvwire.NewTransferChunks(payload, kvwire.TransferChunkSize)); err != nil {
		return FromStatus(err)
	}
	return nil
}
