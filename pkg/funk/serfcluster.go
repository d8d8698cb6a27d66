package funk

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
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lab5e/partfunk/pkg/funk/metrics"
	"github.com/lab5e/partfunk/pkg/toolbox"
)

// serfCluster is a cluster where the membership is the set of live Serf
// members. There's no leader and no replicated state; every node computes
// the partition assignment from the member list.
type serfCluster struct {
	config        Parameters
	serfNode      *SerfNode
	registry      *toolbox.ZeroconfRegistry
	metrics       metrics.Sink
	mutex         *sync.Mutex
	eventChannels []chan Event
	stateMutex    *sync.RWMutex
	state         NodeState
	members       toolbox.StringSet
}

// NewCluster creates a new cluster. The parameters are finalized when the
// cluster starts.
func NewCluster(params Parameters, sink metrics.Sink) Cluster {
	if sink == nil {
		sink = metrics.NewBlackHoleSink()
	}
	params.Final()
	ret := &serfCluster{
		config:        params,
		serfNode:      NewSerfNode(),
		metrics:       sink,
		mutex:         &sync.Mutex{},
		eventChannels: make([]chan Event, 0),
		stateMutex:    &sync.RWMutex{},
		state:         Invalid,
		members:       toolbox.NewStringSet(),
	}
	if params.ZeroConf {
		ret.registry = toolbox.NewZeroconfRegistry(params.Name)
	}
	return ret
}

func (c *serfCluster) NodeID() string {
	return c.config.NodeID
}

func (c *serfCluster) Name() string {
	return c.config.Name
}

func (c *serfCluster) State() NodeState {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state
}

func (c *serfCluster) setState(state NodeState) {
	c.stateMutex.Lock()
	changed := c.state != state
	c.state = state
	c.stateMutex.Unlock()
	if changed {
		c.sendEvent()
	}
}

func (c *serfCluster) Nodes() []string {
	members := c.serfNode.Nodes()
	ret := make([]string, 0, len(members))
	for _, m := range members {
		ret = append(ret, m.NodeID)
	}
	return ret
}

func (c *serfCluster) SetEndpoint(name, endpoint string) {
	c.serfNode.SetTag(name, endpoint)
	if err := c.serfNode.PublishTags(); err != nil {
		log.WithError(err).Error("Error adding endpoint")
	}
	if c.registry == nil || endpoint == "" {
		return
	}
	port, err := toolbox.PortOfHostPort(endpoint)
	if err != nil {
		log.WithError(err).WithField("endpoint", endpoint).Error("Invalid endpoint")
		return
	}
	if err := c.registry.Register(ZeroconfKind(name), c.config.NodeID, port); err != nil {
		log.WithError(err).WithField("name", name).Warning("Unable to register endpoint in zeroconf")
	}
}

func (c *serfCluster) Endpoints() []Endpoint {
	return c.serfNode.Endpoints(c.config.NodeID)
}

func (c *serfCluster) GetEndpoint(nodeID string, endpointName string) string {
	return c.serfNode.Node(nodeID).Tags[endpointName]
}

func (c *serfCluster) Events() <-chan Event {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ret := make(chan Event, 1)
	c.eventChannels = append(c.eventChannels, ret)
	return ret
}

// sendEvent sends the current state and member list to the subscribers. An
// unread event is replaced by the new one.
func (c *serfCluster) sendEvent() {
	ev := Event{State: c.State(), Nodes: c.Nodes()}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, ch := range c.eventChannels {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *serfCluster) Start() error {
	if c.config.Name == "" {
		return errors.New("cluster name not specified")
	}

	c.setState(Starting)

	if c.registry != nil && c.config.Serf.JoinAddress == "" {
		addrs, err := c.registry.Resolve(ZeroconfSerfKind, 1*time.Second)
		if err != nil {
			return err
		}
		if len(addrs) > 0 {
			c.config.Serf.JoinAddress = addrs[0]
		} else {
			log.Debug("No Serf nodes found, starting a new cluster")
		}
	}

	c.serfNode.SetTag(SerfEndpoint, c.config.Serf.Endpoint)
	go c.serfEventLoop(c.serfNode.Events())

	if err := c.serfNode.Start(c.config.NodeID, c.config.Serf); err != nil {
		// Stops the event loop
		c.serfNode.Stop()
		c.setState(Invalid)
		return err
	}
	if c.registry != nil {
		port, err := toolbox.PortOfHostPort(c.config.Serf.Endpoint)
		if err != nil {
			return err
		}
		if err := c.registry.Register(ZeroconfSerfKind, c.config.NodeID, port); err != nil {
			return err
		}
	}
	c.setState(Operational)
	return nil
}

func (c *serfCluster) serfEventLoop(ch <-chan NodeEvent) {
	for ev := range ch {
		nodes := c.Nodes()
		if c.members.Sync(nodes...) {
			log.WithFields(log.Fields{
				"event": ev.Event.String(),
				"node":  ev.Node.NodeID,
				"nodes": nodes,
			}).Info("Cluster membership changed")
		}
		c.metrics.SetClusterSize(len(nodes))
		// Tag updates are forwarded too since endpoints might have changed
		c.sendEvent()
	}
}

func (c *serfCluster) Stop() {
	c.setState(Stopping)

	if err := c.serfNode.Stop(); err != nil {
		log.WithError(err).Warning("Error stopping Serf node. Will stop anyways.")
	}
	if c.registry != nil {
		c.registry.Shutdown()
	}
	c.setState(Invalid)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, v := range c.eventChannels {
		close(v)
	}
	c.eventChannels = nil
}
