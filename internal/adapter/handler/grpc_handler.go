package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

const (
	orderServiceName = "pos.OrderService"
	codecName        = "json"
)

// jsonCodec carries the same request and response bodies as the HTTP API over gRPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GRPCServerOptions must be passed to grpc.NewServer for OrderService to decode requests.
func GRPCServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(requestIDInterceptor),
	}
}

func requestIDInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("x-request-id"); len(values) > 0 {
			id = values[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return handler(logger.ContextWithRequestID(ctx, id), req)
}

// GRPCCallOptions selects the JSON codec on the client side.
func GRPCCallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(codecName)}
}

type OrderServiceServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
}

type GRPCHandler struct {
	orderService *service.OrderService
	log          logger.Logger
}

func NewGRPCHandler(orderService *service.OrderService, log logger.Logger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, log: log}
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := h.orderService.PlaceOrder(ctx, req.toCommand())
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	resp := newPlaceOrderResponse(result)
	return &resp, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := h.orderService.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	resp := newOrderResponse(order)
	return &resp, nil
}

func (h *GRPCHandler) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInsufficientStock), errors.Is(err, service.ErrProductUnavailable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrDuplicateRequest):
		return status.Error(codes.Aborted, "duplicate request in progress")
	case errors.Is(err, port.ErrLockConflict):
		h.log.WithContext(ctx).Warn("transaction lock conflict", logger.Error(err))
		return status.Error(codes.Aborted, "checkout conflicted with a concurrent sale, retry")
	case service.IsBusinessError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	}

	h.log.WithContext(ctx).Error("grpc request failed", logger.Error(err))
	return status.Error(codes.Internal, "internal error")
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pos/order_service",
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/PlaceOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/GetOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).GetOrder(ctx, req.(*GetOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OrderServiceClient calls OrderService with the JSON codec.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) PlaceOrder(ctx context.Context, req *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	out := new(PlaceOrderResponse)
	opts = append(GRPCCallOptions(), opts...)
	if err := c.cc.Invoke(ctx, "/"+orderServiceName+"/PlaceOrder", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, req *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	opts = append(GRPCCallOptions(), opts...)
	if err := c.cc.Invoke(ctx, "/"+orderServiceName+"/GetOrder", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
