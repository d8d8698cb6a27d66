package kvwire

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
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the gRPC service name of the partition service
const ServiceName = "partfunk.PartitionService"

// OwnerMetadataKey is the trailer key set on NotOwner responses. The value
// is the endpoint of the node that owns the key's partition, if known.
const OwnerMetadataKey = "partfunk-owner"

// Full method names for the partition service
const (
	GetMethod       = "/" + ServiceName + "/Get"
	PutMethod       = "/" + ServiceName + "/Put"
	TransferMethod  = "/" + ServiceName + "/Transfer"
	StatusMethod    = "/" + ServiceName + "/Status"
	RebalanceMethod = "/" + ServiceName + "/Rebalance"
)

// PartitionServiceServer is the server API for the partition service
type PartitionServiceServer interface {
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Put(context.Context, *PutRequest) (*Empty, error)
	Transfer(context.Context, *TransferRequest) (*Empty, error)
	Status(context.Context, *Empty) (*StatusResponse, error)
	Rebalance(context.Context, *Empty) (*RebalanceResponse, error)
}

// RegisterPartitionServiceServer registers the partition service with a
// gRPC server.
func RegisterPartitionServiceServer(s *grpc.Server, srv PartitionServiceServer) {
	s.RegisterService(&PartitionServiceDesc, srv)
}

type methodFunc func(srv PartitionServiceServer, ctx context.Context, req Message) (Message, error)

// unaryHandler unwraps the request from the BytesValue, calls the method and
// wraps the response. Interceptors see the decoded request.
func unaryHandler(fullMethod string, newRequest func() Message, call methodFunc) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := &wrapperspb.BytesValue{}
		if err := dec(in); err != nil {
			return nil, err
		}
		req := newRequest()
		if err := req.UnmarshalBinary(in.Value); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			resp, err := call(srv.(PartitionServiceServer), ctx, req.(Message))
			if err != nil {
				return nil, err
			}
			buf, err := resp.MarshalBinary()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "unable to marshal response: %v", err)
			}
			return &wrapperspb.BytesValue{Value: buf}, nil
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		return interceptor(ctx, req, info, handler)
	}
}

// transferHandler joins the chunks of a partition transfer and calls
// Transfer once the client has sent the last chunk.
func transferHandler(srv interface{}, stream grpc.ServerStream) error {
	req, err := receiveTransfer(stream)
	if err != nil {
		return err
	}
	resp, err := srv.(PartitionServiceServer).Transfer(stream.Context(), req)
	if err != nil {
		return err
	}
	buf, err := resp.MarshalBinary()
	if err != nil {
		return status.Errorf(codes.Internal, "unable to marshal response: %v", err)
	}
	return stream.SendMsg(&wrapperspb.BytesValue{Value: buf})
}

func receiveTransfer(stream grpc.ServerStream) (*TransferRequest, error) {
	var ret *TransferRequest
	for {
		in := &wrapperspb.BytesValue{}
		if err := stream.RecvMsg(in); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		chunk := &TransferRequest{}
		if err := chunk.UnmarshalBinary(in.Value); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
		}
		if ret == nil {
			ret = chunk
			continue
		}
		if chunk.Partition != ret.Partition || chunk.Sender != ret.Sender || chunk.Epoch != ret.Epoch {
			return nil, status.Errorf(codes.InvalidArgument, "chunk for partition %d from %s in transfer of partition %d from %s",
				chunk.Partition, chunk.Sender, ret.Partition, ret.Sender)
		}
		ret.Entries = append(ret.Entries, chunk.Entries...)
	}
	if ret == nil {
		return nil, status.Error(codes.InvalidArgument, "transfer has no chunks")
	}
	return ret, nil
}

// PartitionServiceDesc is the service description for the partition service
var PartitionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PartitionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Get",
			Handler: unaryHandler(GetMethod, func() Message { return &GetRequest{} },
				func(srv PartitionServiceServer, ctx context.Context, req Message) (Message, error) {
					return srv.Get(ctx, req.(*GetRequest))
				}),
		},
		{
			MethodName: "Put",
			Handler: unaryHandler(PutMethod, func() Message { return &PutRequest{} },
				func(srv PartitionServiceServer, ctx context.Context, req Message) (Message, error) {
					return srv.Put(ctx, req.(*PutRequest))
				}),
		},
		{
			MethodName: "Status",
			Handler: unaryHandler(StatusMethod, func() Message { return &Empty{} },
				func(srv PartitionServiceServer, ctx context.Context, req Message) (Message, error) {
					return srv.Status(ctx, req.(*Empty))
				}),
		},
		{
			MethodName: "Rebalance",
			Handler: unaryHandler(RebalanceMethod, func() Message { return &Empty{} },
				func(srv PartitionServiceServer, ctx context.Context, req Message) (Message, error) {
					return srv.Rebalance(ctx, req.(*Empty))
				}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Transfer",
			Handler:       transferHandler,
			ClientStreams: true,
		},
	},
	Metadata: "partfunk.proto",
}

// PartitionServiceClient is the client API for the partition service
type PartitionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPartitionServiceClient creates a new client for the partition service
func NewPartitionServiceClient(cc grpc.ClientConnInterface) *PartitionServiceClient {
	return &PartitionServiceClient{cc: cc}
}

func (c *PartitionServiceClient) invoke(ctx context.Context, method string, req, resp Message, opts ...grpc.CallOption) error {
	buf, err := req.MarshalBinary()
	if err != nil {
		return err
	}
	out := &wrapperspb.BytesValue{}
	if err := c.cc.Invoke(ctx, method, &wrapperspb.BytesValue{Value: buf}, out, opts...); err != nil {
		return err
	}
	if err := resp.UnmarshalBinary(out.Value); err != nil {
		return status.Errorf(codes.Internal, "invalid response: %v", err)
	}
	return nil
}

// Get reads a key
func (c *PartitionServiceClient) Get(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	ret := &GetResponse{}
	return ret, c.invoke(ctx, GetMethod, req, ret, opts...)
}

// Put writes a key
func (c *PartitionServiceClient) Put(ctx context.Context, req *PutRequest, opts ...grpc.CallOption) (*Empty, error) {
	ret := &Empty{}
	return ret, c.invoke(ctx, PutMethod, req, ret, opts...)
}

// Transfer hands off a partition to the node. The chunks are sent on a
// single stream and must all be for the same partition. The receiver
// installs the partition after the last chunk.
func (c *PartitionServiceClient) Transfer(ctx context.Context, chunks []*TransferRequest, opts ...grpc.CallOption) (*Empty, error) {
	stream, err := c.cc.NewStream(ctx, &PartitionServiceDesc.Streams[0], TransferMethod, opts...)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		buf, err := chunk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if err := stream.SendMsg(&wrapperspb.BytesValue{Value: buf}); err != nil {
			if err == io.EOF {
				// The server ended the call. RecvMsg returns the status.
				break
			}
			return nil, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	out := &wrapperspb.BytesValue{}
	if err := stream.RecvMsg(out); err != nil {
		return nil, err
	}
	ret := &Empty{}
	if err := ret.UnmarshalBinary(out.Value); err != nil {
		return nil, status.Errorf(codes.Internal, "invalid response: %v", err)
	}
	return ret, nil
}

// Status returns the node status
func (c *PartitionServiceClient) Status(ctx context.Context, req *Empty, opts ...grpc.CallOption) (*StatusResponse, error) {
	ret := &StatusResponse{}
	return ret, c.invoke(ctx, StatusMethod, req, ret, opts...)
}

// Rebalance runs a rebalance pass on the node
func (c *PartitionServiceClient) Rebalance(ctx context.Context, req *Empty, opts ...grpc.CallOption) (*RebalanceResponse, error) {
	ret := &RebalanceResponse{}
	return ret, c.invoke(ctx, RebalanceMethod, req, ret, opts...)
}
