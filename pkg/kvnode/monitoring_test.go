package kvnode

import (
	"io/ioutil"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lab5e/partfunk/pkg/kvwire"
)

func TestStatusSender(t *testing.T) {
	assert := require.New(t)

	s := newStatusSender()
	s.Send(statusMessage{Type: membershipMessage, NodeID: "node1", Nodes: []string{"node1"}})

	ch := s.Messages()
	msg := <-ch
	assert.Equal(membershipMessage, msg.Type)
	assert.Equal([]string{"node1"}, msg.Nodes)

	s.Send(statusMessage{Type: rebalanceMessage, NodeID: "node1", Rebalance: &kvwire.RebalanceResponse{Epoch: 1}})
	msg = <-ch
	assert.Equal(rebalanceMessage, msg.Type)
	assert.Equal(uint64(1), msg.Rebalance.Epoch)

	// New clients get the latest message of each type
	ch2 := s.Messages()
	assert.Len(ch2, 2)
	s.Done(ch2)
	_, ok := <-ch2
	assert.False(ok)

	// Slow clients are dropped
	for i := 0; i < 20; i++ {
		s.Send(statusMessage{Type: rebalanceMessage, NodeID: "node1"})
	}
	n := 0
	for range ch {
		n++
	}
	assert.Equal(16, n)
	s.Done(ch)
	s.Close()
}

func TestMonitoringServer(t *testing.T) {
	assert := require.New(t)

	status := newStatusSender()
	status.Send(statusMessage{Type: membershipMessage, NodeID: "node1", Nodes: []string{"node1", "node2"}})

	m := newMonitoringServer(status)
	ep, err := m.Start("127.0.0.1:0")
	assert.NoError(err)
	defer m.Stop()

	resp, err := http.Get("http://" + ep + "/metrics")
	assert.NoError(err)
	buf, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NoError(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.True(strings.Contains(string(buf), "go_goroutines"))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ep+"/statusws", nil)
	assert.NoError(err)
	defer conn.Close()
	assert.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))

	var msg statusMessage
	assert.NoError(conn.ReadJSON(&msg))
	assert.Equal(membershipMessage, msg.Type)
	assert.Equal([]string{"node1", "node2"}, msg.Nodes)

	status.Send(statusMessage{Type: rebalanceMessage, NodeID: "node1", Rebalance: &kvwire.RebalanceResponse{Epoch: 2, Transferred: []int{1, 2}}})
	assert.NoError(conn.ReadJSON(&msg))
	assert.Equal(rebalanceMessage, msg.Type)
	assert.Equal(uint64(2), msg.Rebalance.Epoch)
	assert.Equal([]int{1, 2}, msg.Rebalance.Transferred)

	status.Close()
}
