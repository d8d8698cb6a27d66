package kvnode
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
	"sync"

	"github.com/lab5e/gotoolbox/grpcutil"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/lab5e/partfunk/pkg/clientfunk"
	"github.com/lab5e/partfunk/pkg/funk"
	"github.com/lab5e/partfunk/pkg/funk/metrics"
	"github.com/lab5e/partfunk/pkg/funk/sharding"
	"github.com/lab5e/partfunk/pkg/kvstore"
	"github.com/lab5e/partfunk/pkg/kvwire"
	"github.com/lab5e/partfunk/pkg/serverfunk"
)

// Node is a single node in the partitioned store. It ties the cluster
// membership to the partition assignment and runs the rebalance
// coordinator whenever the membership changes.
type Node struct {
	params      Parameters
	metrics     metrics.Sink
	cluster     funk.Cluster
	shards      sharding.ShardMap
	assignment  *sharding.Assignment
	directory   *directory
	connections *clientfunk.Connections
	store       *kvstore.LocalStore
	coordinator *kvstore.Coordinator
	receiver    *kvstore.ReceiptHandler
	server      *serverfunk.PartitionServer
	grpcServer  *grpc.Server
	monitoring  *monitoringServer
	status      *statusSender
	mutex       *sync.Mutex
	endpoint    string
	monitorEp   string
	cancel      context.CancelFunc
	done        *sync.WaitGroup
}

// New creates a new node. Nothing is started until Start is called.
func New(params Parameters) (*Node, error) {
	params.Final()

	shards := sharding.NewShardMap()
	if err := shards.Init(params.Rebalance.Partitions); err != nil {
		return nil, err
	}

	dialOpts, err := grpcutil.GetDialOpts(grpcutil.GRPCClientParam{
		ServerEndpoint: params.Cluster.GRPC.Endpoint,
		TLS:            params.Cluster.GRPC.TLS,
		CAFile:         params.Cluster.GRPC.CertFile,
	})
	if err != nil {
		return nil, err
	}

	sink := metrics.NewSinkFromString(params.Metrics, params.Cluster.NodeID)
	assignment := sharding.NewAssignment(shards, sharding.NewStringSharder(params.Rebalance.Partitions))
	cluster := funk.NewCluster(params.Cluster, sink)
	dir := &directory{cluster: cluster, assignment: assignment}
	connections := clientfunk.NewConnections(dialOpts...)
	store := kvstore.NewLocalStore(params.Rebalance.Partitions, assignment)
	coordinator := kvstore.NewCoordinator(params.Cluster.NodeID, store, assignment, dir, clientfunk.NewTransport(connections), params.Rebalance, sink)
	receiver := kvstore.NewReceiptHandler(params.Cluster.NodeID, store, assignment, sink)

	return &Node{
		params:      params,
		metrics:     sink,
		cluster:     cluster,
		shards:      shards,
		assignment:  assignment,
		directory:   dir,
		connections: connections,
		store:       store,
		coordinator: coordinator,
		receiver:    receiver,
		server:      serverfunk.NewPartitionServer(params.Cluster.NodeID, store, receiver, coordinator, dir),
		status:      newStatusSender(),
		mutex:       &sync.Mutex{},
		done:        &sync.WaitGroup{},
	}, nil
}

// NodeID returns the node's ID
func (n *Node) NodeID() string {
	return n.params.Cluster.NodeID
}

// Endpoint returns the partition service endpoint. It is blank until the
// node is started.
func (n *Node) Endpoint() string {
	return n.endpoint
}

// MonitoringEndpoint returns the monitoring HTTP endpoint, if any
func (n *Node) MonitoringEndpoint() string {
	return n.monitorEp
}

// Start launches the gRPC server and joins the cluster.
func (n *Node) Start() error {
	if n.cancel != nil {
		return errors.New("node is already started")
	}
	opts, err := serverfunk.ServerOptions(n.params.Cluster.GRPC)
	if err != nil {
		return err
	}
	n.grpcServer = grpc.NewServer(append(opts, serverfunk.WithMetrics(n.metrics)...)...)
	kvwire.RegisterPartitionServiceServer(n.grpcServer, n.server)

	listenAddr, err := serverfunk.Serve(n.grpcServer, n.params.Cluster.GRPC.Endpoint)
	if err != nil {
		return err
	}
	n.endpoint, err = funk.ToPublicEndpoint(listenAddr)
	if err != nil {
		log.WithError(err).WithField("endpoint", listenAddr).Warning("Unable to find public endpoint. Using listen address")
	}
	n.server.SetEndpoint(n.endpoint)

	if n.params.Monitoring != "" {
		n.monitoring = newMonitoringServer(n.status)
		addr, err := n.monitoring.Start(n.params.Monitoring)
		if err != nil {
			n.grpcServer.Stop()
			return err
		}
		n.monitorEp, _ = funk.ToPublicEndpoint(addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	events := n.cluster.Events()
	results := n.coordinator.Results()
	n.done.Add(3)
	go func() {
		defer n.done.Done()
		n.coordinator.Run(ctx)
	}()
	go n.resultLoop(results)
	go n.membershipLoop(events)

	if err := n.cluster.Start(); err != nil {
		n.Stop()
		return err
	}
	n.cluster.SetEndpoint(funk.PartitionEndpoint, n.endpoint)
	if n.monitorEp != "" {
		n.cluster.SetEndpoint(funk.MonitoringEndpoint, n.monitorEp)
	}
	// The local tag update might not show up as a member event
	n.updateMembership(n.cluster.Nodes())

	log.WithFields(log.Fields{
		"nodeID":     n.NodeID(),
		"endpoint":   n.endpoint,
		"partitions": n.store.PartitionCount(),
	}).Info("Partition node started")
	return nil
}

// Stop leaves the cluster and stops the servers. Partitions held by this
// node are not handed off; the other nodes recreate them empty.
func (n *Node) Stop() {
	if n.cancel == nil {
		return
	}
	n.cluster.Stop()
	n.cancel()
	n.done.Wait()
	n.status.Close()
	if n.monitoring != nil {
		n.monitoring.Stop()
	}
	n.grpcServer.Stop()
	n.connections.Close()
	n.cancel = nil
}

func (n *Node) membershipLoop(events <-chan funk.Event) {
	defer n.done.Done()
	for ev := range events {
		if ev.State != funk.Operational {
			log.WithField("state", ev.State.String()).Debug("Cluster state changed")
			continue
		}
		n.updateMembership(ev.Nodes)
	}
}

// updateMembership updates the partition assignment and requests a
// rebalance pass if the set of partition nodes has changed.
func (n *Node) updateMembership(members []string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	nodes, endpoints := n.directory.partitionNodes(members)
	if equalLists(nodes, n.assignment.Nodes()) {
		return
	}
	n.assignment.UpdateNodes(nodes...)
	n.connections.Retain(endpoints...)
	log.WithFields(log.Fields{
		"nodes":  nodes,
		"shards": n.shards.ShardCountForNode(n.NodeID()),
	}).Info("Partition assignment updated")

	n.status.Send(statusMessage{Type: membershipMessage, NodeID: n.NodeID(), Nodes: nodes})
	n.coordinator.OnMembershipChanged()
}

func (n *Node) resultLoop(results <-chan kvstore.Result) {
	defer n.done.Done()
	for r := range results {
		if err := r.Err(); err != nil {
			log.WithError(err).WithField("epoch", r.Epoch).Error("Rebalance pass had transfer failures")
		}
		n.status.Send(statusMessage{Type: rebalanceMessage, NodeID: n.NodeID(), Rebalance: kvwire.NewRebalanceResponse(r)})
	}
}

func equalLists(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
