package simulator

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

const (
	simulatorServiceName = "docsim.v1.ElectrodialysisSimulator"
	simulateStepMethod   = "/" + simulatorServiceName + "/SimulateStep"
)

// RemoteSimulator calls an external simulator service over gRPC
type RemoteSimulator struct {
	conn  *grpc.ClientConn
	owned bool
}

// DialRemote connects to a simulator service at addr
func DialRemote(addr string, opts ...grpc.DialOption) (*RemoteSimulator, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator client for %s: %w", addr, err)
	}
	return &RemoteSimulator{conn: conn, owned: true}, nil
}

// NewRemote uses an existing connection; Close leaves it open
func NewRemote(conn *grpc.ClientConn) *RemoteSimulator {
	return &RemoteSimulator{conn: conn}
}

func (r *RemoteSimulator) SimulateStep(ctx context.Context, req StepRequest) (StepResponse, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return StepResponse{}, err
	}
	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, simulateStepMethod, in, out); err != nil {
		return StepResponse{}, fmt.Errorf("remote simulate step %d: %w", req.Step, err)
	}
	return decodeResponse(out), nil
}

// Close closes a connection created by DialRemote
func (r *RemoteSimulator) Close() error {
	if !r.owned {
		return nil
	}
	return r.conn.Close()
}

// stepServer is the handler type registered with grpc
type stepServer interface {
	SimulateStep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type simulatorServer struct {
	sim Simulator
}

func (s *simulatorServer) SimulateStep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.sim.SimulateStep(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := encodeResponse(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func simulateStepHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(stepServer).SimulateStep(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: simulateStepMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(stepServer).SimulateStep(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var simulatorServiceDesc = grpc.ServiceDesc{
	ServiceName: simulatorServiceName,
	HandlerType: (*stepServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SimulateStep", Handler: simulateStepHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docsim/v1/simulator.proto",
}

// RegisterSimulatorServer exposes sim on a grpc server
func RegisterSimulatorServer(s grpc.ServiceRegistrar, sim Simulator) {
	s.RegisterService(&simulatorServiceDesc, &simulatorServer{sim: sim})
}

func chemistryMap(c models.Chemistry) map[string]any {
	return map[string]any{
		"ph":                    c.PH,
		"alkalinity_mol_per_kg": c.AlkalinityMolPerKg,
		"dic_mol_per_kg":        c.DICMolPerKg,
		"salinity_psu":          c.SalinityPSU,
		"temperature_c":         c.TemperatureC,
	}
}

func chemistryFrom(s *structpb.Struct) models.Chemistry {
	if s == nil {
		return models.Chemistry{}
	}
	f := s.GetFields()
	return models.Chemistry{
		PH:                 f["ph"].GetNumberValue(),
		AlkalinityMolPerKg: f["alkalinity_mol_per_kg"].GetNumberValue(),
		DICMolPerKg:        f["dic_mol_per_kg"].GetNumberValue(),
		SalinityPSU:        f["salinity_psu"].GetNumberValue(),
		TemperatureC:       f["temperature_c"].GetNumberValue(),
	}
}

func encodeRequest(req StepRequest) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"step":             req.Step,
		"timestep_hours":   req.TimestepHours,
		"mode":             string(req.Mode),
		"setpoint_kw":      req.SetpointKW,
		"available_kw":     req.AvailableKW,
		"curtailed_kw":     req.CurtailedKW,
		"active_units":     req.ActiveUnits,
		"chemistry":        chemistryMap(req.Chemistry),
		"tank_level_hours": req.TankLevelHours,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode step request: %w", err)
	}
	return s, nil
}

func decodeRequest(s *structpb.Struct) (StepRequest, error) {
	f := s.GetFields()
	mode := models.Mode(f["mode"].GetStringValue())
	if !mode.Valid() {
		return StepRequest{}, fmt.Errorf("unknown mode %q", mode)
	}
	return StepRequest{
		Step:           int(f["step"].GetNumberValue()),
		TimestepHours:  f["timestep_hours"].GetNumberValue(),
		Mode:           mode,
		SetpointKW:     f["setpoint_kw"].GetNumberValue(),
		AvailableKW:    f["available_kw"].GetNumberValue(),
		CurtailedKW:    f["curtailed_kw"].GetNumberValue(),
		ActiveUnits:    int(f["active_units"].GetNumberValue()),
		Chemistry:      chemistryFrom(f["chemistry"].GetStructValue()),
		TankLevelHours: f["tank_level_hours"].GetNumberValue(),
	}, nil
}

func encodeResponse(resp StepResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"step":               resp.Step,
		"power_consumed_kw":  resp.PowerConsumedKW,
		"curtailed_power_kw": resp.CurtailedPowerKW,
		"co2_captured_kg":    resp.CO2CapturedKg,
		"chemistry_delta":    chemistryMap(resp.ChemistryDelta),
		"tank_delta_hours":   resp.TankDeltaHours,
	})
}

func decodeResponse(s *structpb.Struct) StepResponse {
	f := s.GetFields()
	return StepResponse{
		Step:             int(f["step"].GetNumberValue()),
		PowerConsumedKW:  f["power_consumed_kw"].GetNumberValue(),
		CurtailedPowerKW: f["curtailed_power_kw"].GetNumberValue(),
		CO2CapturedKg:    f["co2_captured_kg"].GetNumberValue(),
		ChemistryDelta:   chemistryFrom(f["chemistry_delta"].GetStructValue()),
		TankDeltaHours:   f["tank_delta_hours"].GetNumberValue(),
	}
}
