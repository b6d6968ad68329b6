package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// StorefrontServiceName is the fully qualified gRPC service name.
const StorefrontServiceName = "storefront.v1.Storefront"

// StorefrontServer is the server API for the storefront service. Requests and
// responses are google.protobuf.Struct documents.
type StorefrontServer interface {
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddCartItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCartItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveCartItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(StorefrontServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + StorefrontServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StorefrontServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(StorefrontServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// StorefrontServiceDesc is the grpc.ServiceDesc for the storefront service.
var StorefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: StorefrontServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ListProducts", StorefrontServer.ListProducts),
		unaryMethod("GetProduct", StorefrontServer.GetProduct),
		unaryMethod("SearchProducts", StorefrontServer.SearchProducts),
		unaryMethod("GetCart", StorefrontServer.GetCart),
		unaryMethod("AddCartItem", StorefrontServer.AddCartItem),
		unaryMethod("UpdateCartItem", StorefrontServer.UpdateCartItem),
		unaryMethod("RemoveCartItem", StorefrontServer.RemoveCartItem),
		unaryMethod("ClearCart", StorefrontServer.ClearCart),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterStorefrontServer registers srv on s.
func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&StorefrontServiceDesc, srv)
}

// StorefrontClient calls the storefront service over a client connection.
type StorefrontClient struct {
	cc grpc.ClientConnInterface
}

// NewStorefrontClient wraps cc.
func NewStorefrontClient(cc grpc.ClientConnInterface) *StorefrontClient {
	return &StorefrontClient{cc: cc}
}

// Call invokes method with req, where method is a bare name such as "GetCart".
func (c *StorefrontClient) Call(ctx context.Context, method string, req map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+StorefrontServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
