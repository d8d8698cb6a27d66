package clientfunk

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/lab5e/partfunk/pkg/kvstore"
	"github.com/lab5e/partfunk/pkg/kvwire"
)

// FromStatus converts gRPC errors from the partition service into the store
// errors. Other errors, including invalid arguments, are returned as is.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch s.Code() {
	case codes.FailedPrecondition:
		return kvstore.ErrNotOwner
	case codes.NotFound:
		return kvstore.ErrNotFound
	case codes.Aborted:
		return kvstore.ErrRebalanceConflict
	default:
		return err
	}
}

// ownerFromTrailer returns the owner endpoint from a NotOwner response
func ownerFromTrailer(md metadata.MD) string {
	v := md.Get(kvwire.OwnerMetadataKey)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
