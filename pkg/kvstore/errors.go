package kvstore

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
	"fmt"
)

var (
	// ErrNotOwner is returned when the key's partition isn't held by the
	// local node. The caller should look up the owner and redirect.
	ErrNotOwner = errors.New("partition is not owned by this node")

	// ErrNotFound is returned when the key doesn't exist in an owned
	// partition.
	ErrNotFound = errors.New("key not found")

	// ErrTransferFailure is the error kind for failed handoffs. The sending
	// node has already released the partition when this is reported.
	ErrTransferFailure = errors.New("partition transfer failed")

	// ErrRebalanceConflict is returned when a rebalance pass can't get hold
	// of the pass token before the context expires.
	ErrRebalanceConflict = errors.New("rebalance pass already in progress")

	// ErrInvalidPartition is returned for partition IDs outside [0, P)
	ErrInvalidPartition = errors.New("invalid partition ID")

	// ErrNoOwner is returned when the owner map has no live owner for a
	// partition.
	ErrNoOwner = errors.New("partition has no owner")
)

// TransferError describes a failed handoff for a single partition.
type TransferError struct {
	Partition int
	NodeID    string
	Address   string
	Err       error
}

func (t *TransferError) Error() string {
	return fmt.Sprintf("transfer of partition %d to node %s (%s) failed: %v", t.Partition, t.NodeID, t.Address, t.Err)
}

// Unwrap returns the underlying transport error
func (t *TransferError) Unwrap() error {
	return t.Err
}

// Is makes errors.Is(err, ErrTransferFailure) true for all transfer errors
func (t *TransferError) Is(target error) bool {
	return target == ErrTransferFailure
}
