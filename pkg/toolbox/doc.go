// Package toolbox contains small helpers used by the nodes and the command
// line tools: random IDs, endpoint helpers, zeroconf registration, a string
// set and signal handling. Nothing in here knows about partitions.
package toolbox
