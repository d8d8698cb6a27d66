package kvnode

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lab5e/partfunk/pkg/kvwire"
)

// Message types for the status stream
const (
	membershipMessage = "membership"
	rebalanceMessage  = "rebalance"
)

type statusMessage struct {
	Type      string                    `json:"type"`
	NodeID    string                    `json:"nodeId"`
	Nodes     []string                  `json:"nodes,omitempty"`
	Rebalance *kvwire.RebalanceResponse `json:"rebalance,omitempty"`
}

// statusSender distributes status messages to the websocket clients. The
// latest message of each type is kept and sent to new clients first.
type statusSender struct {
	mutex   *sync.Mutex
	presets map[string]statusMessage
	chans   []chan statusMessage
}

func newStatusSender() *statusSender {
	return &statusSender{
		mutex:   &sync.Mutex{},
		presets: make(map[string]statusMessage),
	}
}

// Send forwards the message to all clients. Clients that can't keep up
// are disconnected.
func (m *statusSender) Send(msg statusMessage) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.presets[msg.Type] = msg
	keep := m.chans[:0]
	for _, v := range m.chans {
		select {
		case v <- msg:
			keep = append(keep, v)
		default:
			log.Info("Closing status stream since the client is too slow")
			close(v)
		}
	}
	m.chans = keep
}

// Messages returns a new message channel with the presets queued.
func (m *statusSender) Messages() <-chan statusMessage {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ch := make(chan statusMessage, 16)
	for _, t := range []string{membershipMessage, rebalanceMessage} {
		if msg, ok := m.presets[t]; ok {
			ch <- msg
		}
	}
	m.chans = append(m.chans, ch)
	return ch
}

// Done removes the channel. It is closed if it's still open.
func (m *statusSender) Done(ch <-chan statusMessage) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i, v := range m.chans {
		if v == ch {
			close(v)
			m.chans = append(m.chans[:i], m.chans[i+1:]...)
			return
		}
	}
}

// Close closes all client channels
func (m *statusSender) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, v := range m.chans {
		close(v)
	}
	m.chans = nil
}
