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
	"sync"

	"google.golang.org/grpc"
)

// Connections caches client connections per endpoint. The connections are
// shared between goroutines.
type Connections struct {
	mutex       *sync.Mutex
	dialOptions []grpc.DialOption
	grpcClients map[string]*grpc.ClientConn
}

// NewConnections creates a new connection cache. The dial options are used
// for every new connection.
func NewConnections(dialOptions ...grpc.DialOption) *Connections {
	return &Connections{
		mutex:       &sync.Mutex{},
		dialOptions: dialOptions,
		grpcClients: make(map[string]*grpc.ClientConn),
	}
}

// GetConnection returns the connection for an endpoint, creating it if
// needed. Dialing doesn't block so a dead endpoint shows up as an error on
// the first call.
func (c *Connections) GetConnection(endpoint string) (*grpc.ClientConn, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	conn, ok := c.grpcClients[endpoint]
	if !ok {
		var err error
		conn, err = grpc.Dial(endpoint, c.dialOptions...)
		if err != nil {
			return nil, err
		}
		c.grpcClients[endpoint] = conn
	}
	return conn, nil
}

// Retain closes the connections to endpoints not in the list
func (c *Connections) Retain(endpoints ...string) {
	keep := make(map[string]bool)
	for _, v := range endpoints {
		keep[v] = true
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for k, v := range c.grpcClients {
		if !keep[k] {
			v.Close()
			delete(c.grpcClients, k)
		}
	}
}

// Size returns the number of cached connections
func (c *Connections) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.grpcClients)
}

// Close closes all connections
func (c *Connections) Close() {
	c.Retain()
}
