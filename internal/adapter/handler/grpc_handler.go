package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const StorefrontServiceName = "storefront.v1.Storefront"

// StorefrontServer is the gRPC surface of the storefront. Messages are
// protobuf well-known types; structured replies travel as Struct values
// carrying the same JSON documents the HTTP API returns.
type StorefrontServer interface {
	GetCart(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AddToCart(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	RemoveFromCart(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	// UpdateQuantity takes a Struct with numeric "id" and "quantity" fields.
	UpdateQuantity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearCart(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListUsers(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetUser(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
}

var StorefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: StorefrontServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetCart", newEmpty, StorefrontServer.GetCart),
		unary("AddToCart", newInt64, StorefrontServer.AddToCart),
		unary("RemoveFromCart", newInt64, StorefrontServer.RemoveFromCart),
		unary("UpdateQuantity", newStruct, StorefrontServer.UpdateQuantity),
		unary("ClearCart", newEmpty, StorefrontServer.ClearCart),
		unary("ListUsers", newEmpty, StorefrontServer.ListUsers),
		unary("GetUser", newInt64, StorefrontServer.GetUser),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.proto",
}

func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&StorefrontServiceDesc, srv)
}

func newEmpty() *emptypb.Empty        { return new(emptypb.Empty) }
func newInt64() *wrapperspb.Int64Value { return new(wrapperspb.Int64Value) }
func newStruct() *structpb.Struct      { return new(structpb.Struct) }

// unary builds the method descriptor for one RPC, decoding into a fresh
// request and running any configured interceptor.
func unary[Req, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(StorefrontServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	fullMethod := "/" + StorefrontServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(StorefrontServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(Req))
			})
		},
	}
}

type GRPCHandler struct {
	svc Services
	log *zap.Logger
}

func NewGRPCHandler(svc Services, log *zap.Logger) *GRPCHandler {
	return &GRPCHandler{svc: svc, log: log}
}

func (h *GRPCHandler) GetCart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return h.reply(cartResponse(h.svc.Cart.State()))
}

func (h *GRPCHandler) AddToCart(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	p, err := h.svc.Catalog.Product(req.GetValue())
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(cartResponse(h.svc.Cart.AddToCart(p)))
}

func (h *GRPCHandler) RemoveFromCart(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	return h.reply(cartResponse(h.svc.Cart.RemoveFromCart(req.GetValue())))
}

func (h *GRPCHandler) UpdateQuantity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	if fields["id"] == nil || fields["quantity"] == nil {
		return nil, status.Error(codes.InvalidArgument, "id and quantity are required")
	}
	id, ok := wholeNumber(fields["id"], -maxExactFloat, maxExactFloat)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "id must be an integer")
	}
	qty, ok := wholeNumber(fields["quantity"], math.MinInt32, math.MaxInt32)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "quantity must be an integer")
	}

	state, err := h.svc.Cart.UpdateQuantity(id, int(qty))
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(cartResponse(state))
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// wholeNumber reads v as an integer in [lo, hi]. Fractions, NaN, infinities
// and non-number kinds are rejected.
func wholeNumber(v *structpb.Value, lo, hi float64) (int64, bool) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f < lo || f > hi {
		return 0, false
	}
	return int64(f), true
}

func (h *GRPCHandler) ClearCart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return h.reply(cartResponse(h.svc.Cart.ClearCart()))
}

func (h *GRPCHandler) ListUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res := h.svc.Directory.Load(ctx)
	return h.reply(DirectoryResponse{
		LoadResult: res,
		Status:     h.svc.Directory.Status(),
		Online:     res.Online(),
	})
}

func (h *GRPCHandler) GetUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	u, err := h.svc.Directory.Lookup(ctx, req.GetValue())
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(u)
}

func (h *GRPCHandler) toStatus(err error) error {
	_, code, message := classify(err)
	if code == codes.Internal {
		h.log.Error("rpc failed", zap.Error(err))
	}
	return status.Error(code, message)
}

func (h *GRPCHandler) reply(v any) (*structpb.Struct, error) {
	s, err := toStruct(v)
	if err != nil {
		h.log.Error("encode reply", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return s, nil
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return structpb.NewStruct(m)
}
