package simd

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
)

const SimulationServiceName = "docsim.v1.SimulationService"

// SimulationGRPCServer serves the run API over gRPC with structpb.Struct messages.
type SimulationGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

// NewSimulationGRPCServer creates a new SimulationGRPCServer with the provided RunStore and RunExecutor.
func NewSimulationGRPCServer(store *RunStore, executor *RunExecutor) *SimulationGRPCServer {
	return &SimulationGRPCServer{
		store:    store,
		Executor: executor,
	}
}

// Register adds the service to a grpc server
func (s *SimulationGRPCServer) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&simulationServiceDesc, s)
}

func (s *SimulationGRPCServer) CreateRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	yamlText := f["config_yaml"].GetStringValue()
	if yamlText == "" {
		return nil, status.Error(codes.InvalidArgument, "config_yaml is required")
	}
	cfg, err := config.ParseUntrustedConfigYAMLString(yamlText)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	input := RunInput{
		ConfigYAML:     yamlText,
		CallbackURL:    f["callback_url"].GetStringValue(),
		CallbackSecret: f["callback_secret"].GetStringValue(),
	}
	if md := f["metadata"].GetStructValue(); md != nil {
		input.Metadata = make(map[string]string, len(md.GetFields()))
		for k, v := range md.GetFields() {
			input.Metadata[k] = v.GetStringValue()
		}
	}

	rec, err := s.store.Create(f["run_id"].GetStringValue(), input, cfg)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run created", "run_id", rec.Run.ID)

	if f["start"].GetBoolValue() {
		if rec, err = s.Executor.Start(rec.Run.ID); err != nil {
			return nil, grpcError(err)
		}
	}
	return runResponse(rec)
}

func (s *SimulationGRPCServer) StartRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := req.GetFields()["run_id"].GetStringValue()
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	updated, err := s.Executor.Start(runID)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run started (executor)", "run_id", runID)
	return runResponse(updated)
}

func (s *SimulationGRPCServer) StopRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := req.GetFields()["run_id"].GetStringValue()
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run cancelled", "run_id", runID)
	return runResponse(updated)
}

func (s *SimulationGRPCServer) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := req.GetFields()["run_id"].GetStringValue()
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return runResponse(rec)
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing), errors.Is(err, ErrInvalidRunID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// runResponse encodes {"run": ..., "summary": ...}; the summary is present once the horizon ended
func runResponse(rec RunRecord) (*structpb.Struct, error) {
	run := convertRunToJSON(rec)
	if md, ok := run["metadata"].(map[string]string); ok {
		converted := make(map[string]any, len(md))
		for k, v := range md {
			converted[k] = v
		}
		run["metadata"] = converted
	}
	out := map[string]any{"run": run}

	if rec.Summary != nil {
		summary, err := toGeneric(rec.Summary)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		out["summary"] = summary
	}

	s, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

// toGeneric round-trips v through JSON into the shapes structpb accepts
func toGeneric(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type simulationServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(simulationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + SimulationServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(simulationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(simulationServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var simulationServiceDesc = grpc.ServiceDesc{
	ServiceName: SimulationServiceName,
	HandlerType: (*simulationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateRun", simulationServer.CreateRun),
		unaryHandler("StartRun", simulationServer.StartRun),
		unaryHandler("StopRun", simulationServer.StopRun),
		unaryHandler("GetRun", simulationServer.GetRun),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docsim/v1/simulation.proto",
}
