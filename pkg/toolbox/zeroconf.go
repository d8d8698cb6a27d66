package toolbox

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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// ZeroconfRegistry registers and looks up cluster endpoints in mDNS. Nodes
// register their Serf and gRPC endpoints on startup which lets new nodes
// and clients find the cluster without a join address.
//
// This won't work in environments without support for multicast UDP. The
// registered address is the external IP address of the host, not the
// loopback address.
type ZeroconfRegistry struct {
	mutex       *sync.Mutex
	servers     map[string]*zeroconf.Server
	ClusterName string
}

const serviceString = "_partfunk._udp"

const defaultDomain = "local."

var txtRecords = []string{"txtv=0", "name=partfunk node"}

// NewZeroconfRegistry creates a new registry for the cluster
func NewZeroconfRegistry(clusterName string) *ZeroconfRegistry {
	return &ZeroconfRegistry{
		servers:     make(map[string]*zeroconf.Server),
		mutex:       &sync.Mutex{},
		ClusterName: clusterName,
	}
}

// Register registers an endpoint of the given kind for a node
func (zr *ZeroconfRegistry) Register(kind string, id string, port int) error {
	zr.mutex.Lock()
	defer zr.mutex.Unlock()
	entry := fmt.Sprintf("%s_%s_%s", zr.ClusterName, kind, id)
	if _, ok := zr.servers[entry]; ok {
		return errors.New("entry is already registered")
	}
	server, err := zeroconf.Register(entry, serviceString, defaultDomain, port, txtRecords, nil)
	if err != nil {
		return err
	}
	zr.servers[entry] = server
	return nil
}

// Shutdown removes all of the registered entries
func (zr *ZeroconfRegistry) Shutdown() {
	zr.mutex.Lock()
	defer zr.mutex.Unlock()
	for k, v := range zr.servers {
		v.Shutdown()
		delete(zr.servers, k)
	}
}

// browse collects matching endpoints until the wait time expires or the
// callback returns false.
func (zr *ZeroconfRegistry) browse(kind string, waitTime time.Duration, cb func(endpoint string) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTime)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, serviceString, defaultDomain, entries); err != nil {
		return err
	}

	clusterPrefix := fmt.Sprintf("%s_%s_", zr.ClusterName, kind)
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(entry.Instance, clusterPrefix) {
				continue
			}
			for i := range entry.AddrIPv4 {
				if !cb(fmt.Sprintf("%s:%d", entry.AddrIPv4[i], entry.Port)) {
					return nil
				}
			}
		}
	}
}

// Resolve returns all endpoints of a kind that are found within the wait time
func (zr *ZeroconfRegistry) Resolve(kind string, waitTime time.Duration) ([]string, error) {
	var ret []string
	err := zr.browse(kind, waitTime, func(endpoint string) bool {
		ret = append(ret, endpoint)
		return true
	})
	return ret, err
}

// ResolveFirst returns the first endpoint found. A blank endpoint is returned
// if there are no matching endpoints.
func (zr *ZeroconfRegistry) ResolveFirst(kind string, waitTime time.Duration) (string, error) {
	ret := ""
	err := zr.browse(kind, waitTime, func(endpoint string) bool {
		ret = endpoint
		return false
	})
	return ret, err
}
