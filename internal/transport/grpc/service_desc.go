package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The booking service exchanges google.protobuf.Struct messages, so its
// descriptor is declared here instead of being generated from a .proto file.
const (
	BookingServiceName = "reservo.v1.BookingService"

	GetAvailableSlotsMethod = "/" + BookingServiceName + "/GetAvailableSlots"
	CreateReservationMethod = "/" + BookingServiceName + "/CreateReservation"
	CancelReservationMethod = "/" + BookingServiceName + "/CancelReservation"
	GetReservationMethod    = "/" + BookingServiceName + "/GetReservation"
)

type BookingServiceServer interface {
	GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAvailableSlots",
			Handler:    unaryHandler(GetAvailableSlotsMethod, BookingServiceServer.GetAvailableSlots),
		},
		{
			MethodName: "CreateReservation",
			Handler:    unaryHandler(CreateReservationMethod, BookingServiceServer.CreateReservation),
		},
		{
			MethodName: "CancelReservation",
			Handler:    unaryHandler(CancelReservationMethod, BookingServiceServer.CancelReservation),
		},
		{
			MethodName: "GetReservation",
			Handler:    unaryHandler(GetReservationMethod, BookingServiceServer.GetReservation),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reservo/v1/booking.proto",
}

type structCall func(BookingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingServiceClient is the client side of BookingServiceDesc.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) GetAvailableSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetAvailableSlotsMethod, in, opts)
}

func (c *BookingServiceClient) CreateReservation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CreateReservationMethod, in, opts)
}

func (c *BookingServiceClient) CancelReservation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CancelReservationMethod, in, opts)
}

func (c *BookingServiceClient) GetReservation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetReservationMethod, in, opts)
}

func (c *BookingServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
