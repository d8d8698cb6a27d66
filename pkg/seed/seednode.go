package seed
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

	"github.com/alecthomas/kong"
	gotoolbox "github.com/lab5e/gotoolbox/toolbox"
	"github.com/sirupsen/logrus"

	"github.com/lab5e/partfunk/pkg/funk"
)

type parameters struct {
	Cluster  funk.Parameters         `kong:"embed"`
	Log      gotoolbox.LogParameters `kong:"embed,prefix='log-'"`
	LiveView bool                    `kong:"help='Display live view of nodes',default='false'"`
}

// Run is a ready-to run (just call it from main()) implementation of
// a seed node. The seed node is a cluster member that never publishes a
// partition endpoint so it won't be assigned any partitions. Other nodes
// can use it as a stable join address.
func Run() {
	var config parameters
	k, err := kong.New(&config, kong.Name("partseed"),
		kong.Description("Seed node for partfunk clusters"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}))
	if err != nil {
		panic(err)
	}
	if _, err := k.Parse(os.Args[1:]); err != nil {
		k.FatalIfErrorf(err)
		return
	}

	gotoolbox.InitLogs("seed", config.Log)
	config.Cluster.Final()

	logrus.WithField("nodeId", config.Cluster.NodeID).Info("Starting seed node")

	c := funk.NewCluster(config.Cluster, nil)
	go func(ch <-chan funk.Event) {
		for ev := range ch {
			logrus.WithFields(logrus.Fields{
				"state": ev.State.String(),
				"nodes": ev.Nodes,
			}).Debug("Cluster event")
		}
	}(c.Events())

	if err := c.Start(); err != nil {
		logrus.WithError(err).Error("Unable to start seed node")
		os.Exit(2)
	}
	defer c.Stop()

	if config.LiveView {
		for {
			clearScreen()
			dumpEndpoints(c)
			time.Sleep(2 * time.Second)
		}
	}
	logrus.WithField("endpoint", config.Cluster.Serf.Endpoint).Info("Seed node started")
	gotoolbox.WaitForSignal()
}

func dumpEndpoints(c funk.Cluster) {
	fmt.Printf("Endpoints for cluster '%s'\n", c.Name())
	fmt.Printf("------------------------------------------------\n")

	byNode := make(map[string][]funk.Endpoint)
	for _, ep := range c.Endpoints() {
		byNode[ep.NodeID] = append(byNode[ep.NodeID], ep)
	}
	for _, nodeID := range c.Nodes() {
		role := "partition node"
		if c.GetEndpoint(nodeID, funk.PartitionEndpoint) == "" {
			role = "seed"
		}
		fmt.Printf("Node: %s (%s)\n", nodeID, role)
		endpoints := byNode[nodeID]
		for i, ep := range endpoints {
			ch := '|'
			if i == (len(endpoints) - 1) {
				ch = '\\'
			}
			fmt.Printf("  %c- %-12s %s\n", ch, ep.Kind(), ep.ListenAddress)
		}
		fmt.Println()
	}
}

func clearScreen() {
	fmt.Print("\033c")
}
