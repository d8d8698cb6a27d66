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
	"fmt"
	"io/ioutil"
	"log"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/serf/serf"
	"github.com/sirupsen/logrus"
)

// SerfEventType is the type of events the SerfNode emits
type SerfEventType int

// Serf event types.
const (
	SerfNodeJoined  SerfEventType = iota // A node joins the cluster
	SerfNodeLeft                         // A node has left the cluster
	SerfNodeUpdated                      // A node's tags are updated
)

func (s SerfEventType) String() string {
	switch s {
	case SerfNodeJoined:
		return "SerfNodeJoined"
	case SerfNodeLeft:
		return "SerfNodeLeft"
	case SerfNodeUpdated:
		return "SerfNodeUpdated"
	default:
		panic(fmt.Sprintf("Unknown serf node type %d", s))
	}
}

// NodeEvent is emitted when nodes are added and removed to/from the cluster
type NodeEvent struct {
	Event SerfEventType
	Node  SerfMember
}

// SerfMember holds information on members in the Serf cluster.
type SerfMember struct {
	NodeID string
	State  string
	Tags   map[string]string
}

// notificationBuffer is the size of the event channels. Events are dropped
// when the buffer is full. Subscribers reread the member list on every
// event so a dropped event is never the only one.
const notificationBuffer = 16

// SerfNode is a wrapper around the Serf library. It keeps track of the live
// members and publishes the local endpoints as tags.
type SerfNode struct {
	mutex         *sync.RWMutex
	se            *serf.Serf
	tags          map[string]string // Local tags.
	changedTags   bool              // Keeps track of changes in tags.
	starting      bool
	notifications []chan NodeEvent
	members       map[string]SerfMember
}

// NewSerfNode creates a new SerfNode instance
func NewSerfNode() *SerfNode {
	ret := &SerfNode{
		mutex:         &sync.RWMutex{},
		tags:          make(map[string]string),
		notifications: make([]chan NodeEvent, 0),
		members:       make(map[string]SerfMember),
	}
	return ret
}

// SerfParameters holds parameters for the Serf client
type SerfParameters struct {
	Endpoint    string `kong:"help='Endpoint for Serf',default=''"`
	JoinAddress string `kong:"help='Join address and port for Serf cluster'"`
	Verbose     bool   `kong:"help='Verbose logging for Serf'"`
}

// Start starts the Serf node and joins the cluster if a join address is set
func (s *SerfNode) Start(nodeID string, cfg SerfParameters) error {
	s.mutex.Lock()
	if s.se != nil || s.starting {
		s.mutex.Unlock()
		return errors.New("serf node is already started")
	}
	s.starting = true
	tags := make(map[string]string)
	for k, v := range s.tags {
		tags[k] = v
	}
	s.changedTags = false
	s.mutex.Unlock()

	// Events are delivered while the node is created and joins the cluster
	// so the mutex can't be held here.
	defer func() {
		s.mutex.Lock()
		s.starting = false
		s.mutex.Unlock()
	}()

	config := serf.DefaultConfig()
	config.NodeName = nodeID
	host, portStr, err := net.SplitHostPort(cfg.Endpoint)
	if err != nil {
		return err
	}
	port, err := strconv.ParseInt(portStr, 10, 32)
	if err != nil {
		return err
	}

	// Lower the default reap and tombstone intervals
	// The tombstone timeout is for nodes that leave
	// gracefully.
	config.ReapInterval = time.Minute * 5
	config.TombstoneTimeout = time.Minute * 10
	config.MemberlistConfig.BindAddr = host
	config.MemberlistConfig.BindPort = int(port)

	// The advertise address is the public-reachable address. Since we're running on
	// a LAN (or a LAN-like) infrastructure this is the public IP address of the host.
	config.MemberlistConfig.AdvertiseAddr = host
	config.MemberlistConfig.AdvertisePort = int(port)

	config.SnapshotPath = "" // empty since we're using dynamic clusters.

	config.Init()
	eventCh := make(chan serf.Event)
	config.EventCh = eventCh

	if cfg.Verbose {
		config.Logger = log.New(os.Stderr, "serf", log.LstdFlags)
	} else {
		mutedLogger := log.New(ioutil.Discard, "", 0)
		config.Logger = mutedLogger
		config.MemberlistConfig.Logger = mutedLogger
	}

	config.Tags = tags

	go s.serfEventHandler(eventCh)

	se, err := serf.Create(config)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	s.se = se
	s.mutex.Unlock()

	if cfg.JoinAddress != "" {
		if _, err := se.Join([]string{cfg.JoinAddress}, true); err != nil {
			return err
		}
	}
	return nil
}

// Stop leaves the cluster and shuts down the Serf node. The event channels
// are closed, also when the node isn't running.
func (s *SerfNode) Stop() error {
	s.mutex.Lock()
	se := s.se
	s.se = nil
	s.mutex.Unlock()

	err := errors.New("serf node is not started")
	if se != nil {
		// The event handler needs the mutex while the node leaves
		err = se.Leave()
		if shutdownErr := se.Shutdown(); err == nil {
			err = shutdownErr
		}
	}

	// Subscribers are released even when the node failed to start
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, v := range s.notifications {
		close(v)
	}
	s.notifications = nil
	return err
}

// SetTag sets a tag on the serf node. The tags are not published until
// PublishTags is called. Blank values remove the tag.
func (s *SerfNode) SetTag(name, value string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if value == "" {
		logrus.Debugf("Deleting tag %s", name)
		delete(s.tags, name)
		s.changedTags = true
		return
	}
	s.tags[name] = value
	s.changedTags = true
}

// PublishTags publishes the tags to the other members of the cluster
func (s *SerfNode) PublishTags() error {
	s.mutex.Lock()
	if s.se == nil || !s.changedTags {
		// Tags are published when the node starts
		s.mutex.Unlock()
		return nil
	}
	se := s.se
	s.changedTags = false
	tags := make(map[string]string)
	for k, v := range s.tags {
		tags[k] = v
	}
	s.mutex.Unlock()

	logrus.WithField("tags", tags).Debug("publishing tags")
	if err := se.SetTags(tags); err != nil {
		return err
	}
	// Update the local member right away so lookups on this node don't
	// wait for the gossip round trip.
	local := se.LocalMember()
	s.addMember(local.Name, local.Status.String(), local.Tags)
	return nil
}

// Events returns a notification channel. Events are dropped if the
// channel is full.
func (s *SerfNode) Events() <-chan NodeEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	newChan := make(chan NodeEvent, notificationBuffer)
	s.notifications = append(s.notifications, newChan)
	return newChan
}

// Node returns information on a particular member. Blank members are
// returned for unknown node IDs.
func (s *SerfNode) Node(nodeID string) SerfMember {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.members[nodeID]
}

// Nodes returns a copy of the live members, sorted by node ID
func (s *SerfNode) Nodes() []SerfMember {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	ret := make([]SerfMember, 0, len(s.members))

	for k, v := range s.members {
		n := SerfMember{NodeID: k, State: v.State, Tags: make(map[string]string)}
		for name, value := range v.Tags {
			n.Tags[name] = value
		}
		ret = append(ret, n)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].NodeID < ret[j].NodeID })
	return ret
}

// Size returns the number of live members
func (s *SerfNode) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.members)
}

// Endpoints returns the endpoints published by the live members
func (s *SerfNode) Endpoints(localNodeID string) []Endpoint {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	endpoints := make([]Endpoint, 0)
	for id, m := range s.members {
		for k, v := range m.Tags {
			if strings.HasPrefix(k, EndpointPrefix) {
				endpoints = append(endpoints, Endpoint{
					NodeID:        id,
					Name:          k,
					ListenAddress: v,
					Local:         id == localNodeID,
				})
			}
		}
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].NodeID == endpoints[j].NodeID {
			return endpoints[i].Name < endpoints[j].Name
		}
		return endpoints[i].NodeID < endpoints[j].NodeID
	})
	return endpoints
}

func (s *SerfNode) addMember(nodeID string, state string, tags map[string]string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	existing, ok := s.members[nodeID]
	existing.NodeID = nodeID
	existing.State = state
	existing.Tags = tags
	s.members[nodeID] = existing
	if !ok {
		s.sendEvent(NodeEvent{Event: SerfNodeJoined, Node: existing})
		return
	}
	s.sendEvent(NodeEvent{Event: SerfNodeUpdated, Node: existing})
}

func (s *SerfNode) removeMember(nodeID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	existing, ok := s.members[nodeID]
	if !ok {
		return
	}
	delete(s.members, nodeID)
	s.sendEvent(NodeEvent{Event: SerfNodeLeft, Node: existing})
}

func (s *SerfNode) sendEvent(ev NodeEvent) {
	for _, v := range s.notifications {
		select {
		case v <- ev:
		default:
			logrus.WithField("event", ev.Event.String()).Debug("Dropping serf event, channel is full")
		}
	}
}

func (s *SerfNode) serfEventHandler(events chan serf.Event) {
	for ev := range events {
		switch ev.EventType() {

		case serf.EventMemberJoin, serf.EventMemberUpdate:
			e, ok := ev.(serf.MemberEvent)
			if !ok {
				continue
			}
			for _, v := range e.Members {
				s.addMember(v.Name, v.Status.String(), v.Tags)
			}

		case serf.EventMemberLeave, serf.EventMemberFailed, serf.EventMemberReap:
			e, ok := ev.(serf.MemberEvent)
			if !ok {
				continue
			}
			for _, v := range e.Members {
				s.removeMember(v.Name)
			}

		case serf.EventUser, serf.EventQuery:
			// Do nothing

		default:
			logrus.WithField("event", ev).Error("Unknown event")
		}
	}
}
