package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "barberbook.v1.BookingService"

// BookingServiceServer is the server API of barberbook.v1.BookingService.
// Every request and response body is a google.protobuf.Struct with
// snake_case keys.
type BookingServiceServer interface {
	// client
	AvailableSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Eligibility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMyAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RescheduleAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptSuggestion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeclineSuggestion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProposeSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)

	// operator
	ListAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NextAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SuggestTime(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompleteAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ManualBook(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OperatorReschedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReleaseClient(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnreleaseClient(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleShop(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetShopConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateShopConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)

	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(BookingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// Method kinds drive the interceptors: operator methods need a session
// token, limited methods are throttled per peer.
var (
	operatorMethods = map[string]bool{}
	limitedMethods  = map[string]bool{}
)

var methods = []struct {
	name     string
	call     unaryMethod
	operator bool
	limited  bool
}{
	{name: "AvailableSlots", call: BookingServiceServer.AvailableSlots},
	{name: "Eligibility", call: BookingServiceServer.Eligibility},
	{name: "CreateBooking", call: BookingServiceServer.CreateBooking, limited: true},
	{name: "ListMyAppointments", call: BookingServiceServer.ListMyAppointments},
	{name: "CancelAppointment", call: BookingServiceServer.CancelAppointment, limited: true},
	{name: "RescheduleAppointment", call: BookingServiceServer.RescheduleAppointment, limited: true},
	{name: "AcceptSuggestion", call: BookingServiceServer.AcceptSuggestion, limited: true},
	{name: "DeclineSuggestion", call: BookingServiceServer.DeclineSuggestion, limited: true},
	{name: "ProposeSlot", call: BookingServiceServer.ProposeSlot, limited: true},

	{name: "ListAppointments", call: BookingServiceServer.ListAppointments, operator: true},
	{name: "NextAppointment", call: BookingServiceServer.NextAppointment, operator: true},
	{name: "Stats", call: BookingServiceServer.Stats, operator: true},
	{name: "AcceptAppointment", call: BookingServiceServer.AcceptAppointment, operator: true},
	{name: "RejectAppointment", call: BookingServiceServer.RejectAppointment, operator: true},
	{name: "SuggestTime", call: BookingServiceServer.SuggestTime, operator: true},
	{name: "CompleteAppointment", call: BookingServiceServer.CompleteAppointment, operator: true},
	{name: "ManualBook", call: BookingServiceServer.ManualBook, operator: true},
	{name: "OperatorReschedule", call: BookingServiceServer.OperatorReschedule, operator: true},
	{name: "ReleaseClient", call: BookingServiceServer.ReleaseClient, operator: true},
	{name: "UnreleaseClient", call: BookingServiceServer.UnreleaseClient, operator: true},
	{name: "ToggleShop", call: BookingServiceServer.ToggleShop, operator: true},
	{name: "GetShopConfig", call: BookingServiceServer.GetShopConfig, operator: true},
	{name: "UpdateShopConfig", call: BookingServiceServer.UpdateShopConfig, operator: true},

	{name: "Login", call: BookingServiceServer.Login, limited: true},
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods:     methodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "barberbook/v1/booking.proto",
}

func methodDescs() []grpc.MethodDesc {
	out := make([]grpc.MethodDesc, 0, len(methods))
	for _, m := range methods {
		full := FullMethod(m.name)
		if m.operator {
			operatorMethods[full] = true
		}
		if m.limited {
			limitedMethods[full] = true
		}
		out = append(out, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler(full, m.call),
		})
	}
	return out
}

func unaryHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
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

func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

// Client calls BookingService methods over any connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
