package kvstore

import (
	log "github.com/sirupsen/logrus"

	"github.com/lab5e/partfunk/pkg/funk/metrics"
)

// ReceiptHandler installs partitions handed off from other nodes.
type ReceiptHandler struct {
	nodeID     string
	store      *LocalStore
	assignment Assignment
	metrics    metrics.Sink
}

// NewReceiptHandler creates a receipt handler for the local store. The
// assignment is only used to flag deliveries that look stale and may be nil.
func NewReceiptHandler(nodeID string, store *LocalStore, assignment Assignment, sink metrics.Sink) *ReceiptHandler {
	if sink == nil {
		sink = metrics.NewBlackHoleSink()
	}
	return &ReceiptHandler{
		nodeID:     nodeID,
		store:      store,
		assignment: assignment,
		metrics:    sink,
	}
}

// OnPartitionReceived installs the payload as the partition's shard. Any
// existing contents are replaced (last writer wins). Deliveries aren't
// fenced; a partition this node doesn't own according to its current
// assignment is installed anyway and is forwarded by the next pass.
func (r *ReceiptHandler) OnPartitionReceived(payload TransferPayload) error {
	fields := log.Fields{
		"partition": payload.Partition,
		"sender":    payload.Sender,
		"epoch":     payload.Epoch,
		"keys":      len(payload.Data),
	}
	if err := r.store.Install(payload.Partition, payload.Data); err != nil {
		log.WithFields(fields).WithError(err).Warning("Rejected partition transfer")
		return err
	}
	r.metrics.LogTransfer(metrics.TransferReceived)
	r.metrics.SetPartitionCount(len(r.store.Partitions()))

	if r.assignment != nil {
		owners := r.assignment.OwnerMap()
		if payload.Partition < len(owners) && owners[payload.Partition] != r.nodeID {
			fields["owner"] = owners[payload.Partition]
			log.WithFields(fields).Warning("Received partition that is assigned to another node. Possibly a stale delivery")
			r.metrics.LogTransfer(metrics.TransferStale)
			return nil
		}
	}
	log.WithFields(fields).Debug("Partition received")
	return nil
}
