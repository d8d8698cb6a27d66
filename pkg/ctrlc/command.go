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
import "errors"

// CommandList contains all of the commands for the command line utility
type CommandList struct {
	Get       GetCommand         `kong:"cmd,help='Read a key from the cluster'"`
	Put       PutCommand         `kong:"cmd,help='Write a key to the cluster'"`
	Status    StatusCommand      `kong:"cmd,help='Show the node status'"`
	Rebalance RebalanceCommand   `kong:"cmd,help='Run a rebalance pass on the node'"`
	Diag      DiagnosticsCommand `kong:"cmd,help='Show zeroconf registrations for the cluster'"`
}

// ClientParameters is the parameters for the partition service client
type ClientParameters struct {
	Name             string `kong:"help='Cluster name',default='partfunk',short='n'"`
	Zeroconf         bool   `kong:"help='Use zeroconf discovery for the partition service',default='true',short='z'"`
	Endpoint         string `kong:"help='gRPC endpoint for one of the nodes',short='e'"`
	TLS              bool   `kong:"help='TLS enabled for gRPC',short='T'"`
	CertFile         string `kong:"help='CA certificate for the partition service',type='existingfile',short='C'"`
	HostnameOverride string `kong:"help='Host name override for certificate',short='H'"`
}

// Parameters is the main parameter struct for the command line utility
type Parameters struct {
	Client   ClientParameters `kong:"embed"`
	Commands CommandList      `kong:"embed"`
}

// errStd is returned when the command has printed its own error message
var errStd = errors.New("error")
