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
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/lab5e/gotoolbox/netutils"
	"github.com/lab5e/partfunk/pkg/toolbox"
)

// GRPCServerParameters is the configuration for a gRPC server
type GRPCServerParameters struct {
	Endpoint string `kong:"help='Server endpoint'"`
	TLS      bool   `kong:"help='Enable TLS'"`
	CertFile string `kong:"help='Certificate file',type='existingfile'"`
	KeyFile  string `kong:"help='Certificate key file',type='existingfile'"`
}

// Parameters is the cluster configuration.
// The struct uses annotations from Kong (https://github.com/alecthomas/kong)
type Parameters struct {
	Name      string               `kong:"help='Cluster name',default='partfunk'"`
	NodeID    string               `kong:"help='Node ID for Serf'"`
	Interface string               `kong:"help='Interface address for services'"`
	Verbose   bool                 `kong:"help='Verbose logging for Serf'"`
	ZeroConf  bool                 `kong:"help='Zero-conf startup',default='true'"`
	Serf      SerfParameters       `kong:"embed,prefix='serf-'"`
	GRPC      GRPCServerParameters `kong:"embed,prefix='grpc-'"`
}

func (p *Parameters) checkAndSetEndpoint(hostport *string) {
	if *hostport != "" {
		return
	}
	port, err := netutils.FreeTCPPort()
	if err != nil {
		port = int(rand.Int31n(31000) + 1024)
	}
	*hostport = fmt.Sprintf("%s:%d", p.Interface, port)
}

// Final sets the defaults that can't be set through annotations, ie random
// node IDs and endpoints on free ports.
func (p *Parameters) Final() {
	if p.NodeID == "" {
		p.NodeID = toolbox.RandomID()
	}
	if p.Interface == "" {
		p.Interface = "localhost"
		ip, err := netutils.FindPublicIPv4()
		if err != nil {
			log.WithError(err).Error("Unable to get public IP")
		} else {
			p.Interface = ip.String()
		}
	}
	p.Serf.Verbose = p.Serf.Verbose || p.Verbose
	p.checkAndSetEndpoint(&p.Serf.Endpoint)
	p.checkAndSetEndpoint(&p.GRPC.Endpoint)

	// Log endpoints regardless of verbose or not.
	log.WithFields(log.Fields{
		"nodeID":       p.NodeID,
		"serfEndpoint": p.Serf.Endpoint,
		"grpcEndpoint": p.GRPC.Endpoint,
	}).Info("Endpoint configuration")
}
