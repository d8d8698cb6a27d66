package serverfunk

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
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/lab5e/partfunk/pkg/funk"
)

// ServerOptions returns the gRPC server options for the configuration
func ServerOptions(config funk.GRPCServerParameters) ([]grpc.ServerOption, error) {
	if !config.TLS {
		return []grpc.ServerOption{}, nil
	}
	if config.CertFile == "" || config.KeyFile == "" {
		return nil, errors.New("missing cert file and key file parameters for GRPC server")
	}
	creds, err := credentials.NewServerTLSFromFile(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, err
	}
	return []grpc.ServerOption{grpc.Creds(creds)}, nil
}

// Serve launches the gRPC server on the endpoint and returns the address
// it listens on.
func Serve(server *grpc.Server, endpoint string) (string, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return "", err
	}

	fail := make(chan error, 1)
	go func(ch chan error) {
		if err := server.Serve(listener); err != nil {
			log.WithError(err).Error("Unable to launch gRPC server")
			ch <- err
		}
	}(fail)

	select {
	case err := <-fail:
		return "", err
	case <-time.After(250 * time.Millisecond):
		// ok
	}
	return listener.Addr().String(), nil
}
