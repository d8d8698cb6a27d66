package ctrlc
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
	"os"
	"time"

	"github.com/lab5e/gotoolbox/grpcutil"

	"github.com/lab5e/partfunk/pkg/clientfunk"
)

const gRPCTimeout = 10 * time.Second

// resolveEndpoint returns the endpoint to use. Zeroconf is only used when
// no endpoint is set.
func resolveEndpoint(params ClientParameters) (string, error) {
	if params.Endpoint != "" || !params.Zeroconf {
		if params.Endpoint == "" {
			return "", fmt.Errorf("need an endpoint for one of the cluster nodes")
		}
		return params.Endpoint, nil
	}
	if params.Name == "" {
		return "", fmt.Errorf("needs a cluster name if zeroconf is to be used for discovery")
	}
	ep, err := clientfunk.ZeroconfLookup(params.Name)
	if err != nil {
		return "", fmt.Errorf("zeroconf lookup error when searching for cluster %s: %v", params.Name, err)
	}
	if ep == "" {
		return "", fmt.Errorf("no nodes found for cluster %s", params.Name)
	}
	return ep, nil
}

func connectToCluster(params ClientParameters) *clientfunk.Client {
	endpoint, err := resolveEndpoint(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return nil
	}

	grpcParams := grpcutil.GRPCClientParam{
		ServerEndpoint:     endpoint,
		TLS:                params.TLS,
		CAFile:             params.CertFile,
		ServerHostOverride: params.HostnameOverride,
	}
	opts, err := grpcutil.GetDialOpts(grpcParams)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create GRPC dial options: %v\n", err)
		return nil
	}
	return clientfunk.NewClient(endpoint, clientfunk.NewConnections(opts...))
}
