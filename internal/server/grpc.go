package server

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC service every command is registered under.
const ServiceName = "synapse.v1.Engine"

// JSONCodec carries command params and results as JSON. Clients select it
// with grpc.CallContentSubtype(JSONCodec{}.Name()).
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// commandHandler is the handler type of the service descriptor.
type commandHandler interface {
	call(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// FullMethod returns the gRPC method path for a command name.
func FullMethod(command string) string {
	return "/" + ServiceName + "/" + rpcName(command)
}

// rpcName maps "createTab" to "CreateTab".
func rpcName(command string) string {
	if command == "" {
		return command
	}
	return strings.ToUpper(command[:1]) + command[1:]
}

func (s *Server) serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*commandHandler)(nil),
		Metadata:    "synapse/v1/engine",
	}
	for _, name := range s.Methods() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: rpcName(name),
			Handler:    commandMethod(name),
		})
	}
	return desc
}

func commandMethod(command string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		var params json.RawMessage
		if err := dec(&params); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode params: %v", err)
		}
		h := srv.(commandHandler)
		invoke := func(ctx context.Context, req any) (any, error) {
			out, err := h.call(ctx, command, *req.(*json.RawMessage))
			if err != nil {
				return nil, toStatus(err)
			}
			return out, nil
		}
		if interceptor == nil {
			return invoke(ctx, &params)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(command)}
		return interceptor(ctx, &params, info, invoke)
	}
}

// toStatus maps engine errors to gRPC status codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch classify(err) {
	case classNotFound:
		return status.Error(codes.NotFound, err.Error())
	case classInvalid:
		return status.Error(codes.InvalidArgument, err.Error())
	case classUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the engine service, health and reflection, and returns it ready to serve.
func NewGRPCServer(s *Server) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(s.logger),
			LoggingInterceptor(s.logger),
		),
	)

	srv.RegisterService(s.serviceDesc(), s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}
