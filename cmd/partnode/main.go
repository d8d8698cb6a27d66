package main

import (
	golog "log"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"

	"github.com/lab5e/partfunk/pkg/kvnode"
	"github.com/lab5e/partfunk/pkg/toolbox"
)

type parameters struct {
	Node     kvnode.Parameters `kong:"embed"`
	LogLevel string            `kong:"help='Logging level',enum='debug,info,warn,error',default='info'"`
}

func main() {
	var config parameters
	kong.Parse(&config,
		kong.Name("partnode"),
		kong.Description("Partitioned in-memory key/value node"),
		kong.UsageOnError())

	defaultLogger := log.New()

	// This mutes the logs from the log package in go (used by Serf and
	// memberlist). Anything logged by the default logger below Warn is muted.
	defaultLogger.SetLevel(log.WarnLevel)
	defaultLogger.Formatter = &log.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"}
	w := defaultLogger.Writer()
	defer w.Close()
	golog.SetOutput(w)

	switch config.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})

	node, err := kvnode.New(config.Node)
	if err != nil {
		log.WithError(err).Error("Unable to create node")
		return
	}
	if err := node.Start(); err != nil {
		log.WithError(err).Error("Unable to start node")
		return
	}
	defer node.Stop()

	log.WithFields(log.Fields{
		"nodeID":     node.NodeID(),
		"endpoint":   node.Endpoint(),
		"monitoring": node.MonitoringEndpoint(),
	}).Info("Node is running. Press Ctrl+C to stop")

	toolbox.WaitForCtrlC()
}
