package grpccas

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the gRPC service served by event daemons.
//
// Messages are protobuf well-known wrapper types, so no protoc step is
// needed:
//
//	Put(BytesValue) StringValue   store a record, return its CID
//	Get(StringValue) BytesValue   fetch a record by CID
//	Has(StringValue) BoolValue
//	Head(Empty) StringValue       newest audit batch CID, "" when empty
const ServiceName = "xdao.attest.storage.v1.CAS"

func method(name string) string { return "/" + ServiceName + "/" + name }

// CASServer is the server API for the CAS gRPC service.
type CASServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Head(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// UnimplementedCASServer can be embedded to have forward compatible implementations.
type UnimplementedCASServer struct{}

func (UnimplementedCASServer) Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Put not implemented")
}
func (UnimplementedCASServer) Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Get not implemented")
}
func (UnimplementedCASServer) Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Has not implemented")
}
func (UnimplementedCASServer) Head(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Head not implemented")
}

// RegisterCASServer registers the CAS service on a gRPC server.
func RegisterCASServer(s grpc.ServiceRegistrar, srv CASServer) {
	s.RegisterService(&CAS_ServiceDesc, srv)
}

// CASClient is the client API for the CAS gRPC service.
type CASClient interface {
	Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	Head(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type casClient struct{ cc grpc.ClientConnInterface }

func NewCASClient(cc grpc.ClientConnInterface) CASClient { return &casClient{cc: cc} }

func invoke[Out any, POut interface {
	*Out
	proto.Message
}](ctx context.Context, cc grpc.ClientConnInterface, name string, in proto.Message, opts []grpc.CallOption) (POut, error) {
	out := POut(new(Out))
	if err := cc.Invoke(ctx, method(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *casClient) Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "Put", in, opts)
}

func (c *casClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "Get", in, opts)
}

func (c *casClient) Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, "Has", in, opts)
}

func (c *casClient) Head(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "Head", in, opts)
}

// unary adapts one typed CASServer method to a grpc.MethodDesc handler.
func unary[In any, PIn interface {
	*In
	proto.Message
}, Out proto.Message](name string, call func(CASServer, context.Context, PIn) (Out, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := PIn(new(In))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CASServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CASServer), ctx, req.(PIn))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CAS_ServiceDesc is the grpc.ServiceDesc for CAS service.
var CAS_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CASServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[wrapperspb.BytesValue]("Put", CASServer.Put),
		unary[wrapperspb.StringValue]("Get", CASServer.Get),
		unary[wrapperspb.StringValue]("Has", CASServer.Has),
		unary[emptypb.Empty]("Head", CASServer.Head),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cas.proto",
}
