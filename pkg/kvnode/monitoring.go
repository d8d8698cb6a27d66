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
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// monitoringServer serves Prometheus metrics on /metrics and a stream of
// membership changes and rebalance results on /statusws
type monitoringServer struct {
	status *statusSender
	srv    *http.Server
}

func newMonitoringServer(status *statusSender) *monitoringServer {
	ret := &monitoringServer{status: status}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/statusws", ret.websocketHandler)
	ret.srv = &http.Server{Handler: mux}
	return ret
}

func (m *monitoringServer) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("Unable to upgrade connection")
		return
	}
	defer conn.Close()

	ch := m.status.Messages()
	defer m.status.Done(ch)
	for msg := range ch {
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Debug("Error writing status message")
			return
		}
	}
}

// Start launches the HTTP server and returns the address it listens on
func (m *monitoringServer) Start(endpoint string) (string, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return "", err
	}
	go func() {
		if err := m.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Monitoring server stopped")
		}
	}()
	log.WithField("endpoint", listener.Addr().String()).Info("Monitoring server started")
	return listener.Addr().String(), nil
}

func (m *monitoringServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warning("Error stopping monitoring server")
	}
}
