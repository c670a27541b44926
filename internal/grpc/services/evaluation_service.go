// Package services implements the gRPC surface over the Evaluation Service.
// It is protobuf-free: request/response types are plain Go structs
// marshaled by internal/grpc/codec.JSON and registered directly on a
// google.golang.org/grpc.Server, since generating .proto stubs requires a
// protoc/buf step this repository does not run.
package services

import (
	"context"

	"github.com/ruletree/engine/internal/services"
	"github.com/ruletree/engine/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ValidateRequest is the gRPC request for Validate.
type ValidateRequest struct {
	TreeID   string                   `json:"tree_id"`
	Incoming map[string][]models.Row `json:"incoming"`
}

// ValidateResponse is the gRPC response for Validate.
type ValidateResponse struct {
	Report *models.RuleTreeReport `json:"report"`
}

// RegisterTreeRequest is the gRPC request for RegisterTree.
type RegisterTreeRequest struct {
	Descriptor models.RuleTreeDescriptor `json:"descriptor"`
}

// RegisterTreeResponse is the gRPC response for RegisterTree.
type RegisterTreeResponse struct {
	TreeID string `json:"tree_id"`
}

// GateOwnerRequest is the gRPC request for Confirm/Revoke.
type GateOwnerRequest struct {
	TreeID  string `json:"tree_id"`
	OwnerID string `json:"owner_id"`
}

// GateOwnerResponse is the gRPC response for Confirm/Revoke.
type GateOwnerResponse struct {
	Confirmed bool   `json:"confirmed"`
	Score     uint32 `json:"score"`
}

// HealthRequest is the gRPC request for Health.
type HealthRequest struct{}

// HealthResponse is the gRPC response for Health.
type HealthResponse struct {
	Status string `json:"status"`
}

// EvaluationServer implements the hand-rolled gRPC Evaluation service: it
// wraps *services.EvaluationService, translating request/response structs
// to/from the core's domain types.
type EvaluationServer struct {
	svc *services.EvaluationService
}

// NewEvaluationServer wraps svc as a gRPC-dispatchable service.
func NewEvaluationServer(svc *services.EvaluationService) *EvaluationServer {
	return &EvaluationServer{svc: svc}
}

// Validate runs the named RuleTree's Evaluator against the posted incoming
// Product.
func (s *EvaluationServer) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	if req.TreeID == "" {
		return nil, status.Error(codes.InvalidArgument, "tree_id is required")
	}

	incoming := models.NewProduct()
	for groupID, rows := range req.Incoming {
		for i, row := range rows {
			for attrID, value := range row {
				incoming.SetRow(groupID, i, attrID, value)
			}
		}
	}

	report, err := s.svc.Validate(ctx, req.TreeID, incoming)
	if err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "validate failed: %v", err)
	}
	return &ValidateResponse{Report: report}, nil
}

// RegisterTree registers a new RuleTree descriptor.
func (s *EvaluationServer) RegisterTree(ctx context.Context, req *RegisterTreeRequest) (*RegisterTreeResponse, error) {
	if req.Descriptor.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "descriptor.id is required")
	}
	if err := s.svc.RegisterTree(ctx, req.Descriptor); err != nil {
		return nil, status.Errorf(codes.AlreadyExists, "register failed: %v", err)
	}
	return &RegisterTreeResponse{TreeID: req.Descriptor.ID}, nil
}

// Confirm records an owner's confirmation against a tree's Gate.
func (s *EvaluationServer) Confirm(ctx context.Context, req *GateOwnerRequest) (*GateOwnerResponse, error) {
	g := s.svc.GateFor(req.TreeID)
	if err := g.Confirm(req.OwnerID); err != nil {
		return nil, status.Errorf(codes.PermissionDenied, "confirm failed: %v", err)
	}
	return &GateOwnerResponse{Confirmed: g.IsConfirmed(), Score: g.CurrentScore()}, nil
}

// Revoke clears an owner's confirmation against a tree's Gate.
func (s *EvaluationServer) Revoke(ctx context.Context, req *GateOwnerRequest) (*GateOwnerResponse, error) {
	g := s.svc.GateFor(req.TreeID)
	if err := g.Revoke(req.OwnerID); err != nil {
		return nil, status.Errorf(codes.PermissionDenied, "revoke failed: %v", err)
	}
	return &GateOwnerResponse{Confirmed: g.IsConfirmed(), Score: g.CurrentScore()}, nil
}

// Health reports liveness with a trivial always-OK status.
func (s *EvaluationServer) Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "healthy"}, nil
}

// ServiceDesc is the hand-rolled grpc.ServiceDesc: no .proto, no protoc.
// Each MethodDesc's handler decodes the request with the codec gRPC selects
// from the call's content-subtype (internal/grpc/codec.JSON for "json", as
// registered in cmd/ruletree-engine) and dispatches to the matching
// EvaluationServer method.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ruletree.Evaluation",
	HandlerType: (*EvaluationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Validate",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := new(ValidateRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*EvaluationServer).Validate(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ruletree.Evaluation/Validate"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*EvaluationServer).Validate(ctx, req.(*ValidateRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "RegisterTree",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := new(RegisterTreeRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*EvaluationServer).RegisterTree(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ruletree.Evaluation/RegisterTree"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*EvaluationServer).RegisterTree(ctx, req.(*RegisterTreeRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "Confirm",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := new(GateOwnerRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*EvaluationServer).Confirm(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ruletree.Evaluation/Confirm"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*EvaluationServer).Confirm(ctx, req.(*GateOwnerRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "Revoke",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := new(GateOwnerRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*EvaluationServer).Revoke(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ruletree.Evaluation/Revoke"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*EvaluationServer).Revoke(ctx, req.(*GateOwnerRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "Health",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := new(HealthRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*EvaluationServer).Health(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ruletree.Evaluation/Health"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*EvaluationServer).Health(ctx, req.(*HealthRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ruletree/evaluation.go",
}

// Register attaches the Evaluation service to a gRPC server.
func Register(s *grpc.Server, srv *EvaluationServer) {
	s.RegisterService(&ServiceDesc, srv)
}
