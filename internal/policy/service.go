package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName        = "arenalearn.policy.v1.PolicyService"
	decideActionMethod = "/" + serviceName + "/DecideAction"
	qValueMethod       = "/" + serviceName + "/QValue"
)

var errBadRequest = errors.New("malformed request")

// #region service-desc
// PolicyServiceServer is the server API of PolicyService. Requests are
// structpb.Struct documents:
//
//	DecideAction: {"state": {...}, "greedy": bool}  -> StringValue(action)
//	QValue:       {"state": {...}, "action": "..."} -> DoubleValue
type PolicyServiceServer interface {
	DecideAction(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	QValue(context.Context, *structpb.Struct) (*wrapperspb.DoubleValue, error)
}

// ServiceDesc registers PolicyService on a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PolicyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DecideAction", Handler: decideActionHandler},
		{MethodName: "QValue", Handler: qValueHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "arenalearn/policy/v1/policy.proto",
}

// Register adds srv to g.
func Register(g grpc.ServiceRegistrar, srv PolicyServiceServer) {
	g.RegisterService(&ServiceDesc, srv)
}

func decideActionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PolicyServiceServer).DecideAction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: decideActionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PolicyServiceServer).DecideAction(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func qValueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PolicyServiceServer).QValue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: qValueMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PolicyServiceServer).QValue(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region message-codec
func encodeState(s game.State) map[string]any {
	return map[string]any{
		"health":      s.Health.String(),
		"enemy_range": s.EnemyRange.String(),
		"ally_nearby": s.AllyNearby,
		"stuck":       s.Stuck,
	}
}

func decodeState(v *structpb.Value) (game.State, error) {
	st := v.GetStructValue()
	if st == nil {
		return game.State{}, fmt.Errorf("%w: state must be an object", errBadRequest)
	}
	f := st.GetFields()
	return game.State{
		Health:     game.ParseBand(f["health"].GetStringValue()),
		EnemyRange: game.ParseBand(f["enemy_range"].GetStringValue()),
		AllyNearby: f["ally_nearby"].GetBoolValue(),
		Stuck:      f["stuck"].GetBoolValue(),
	}, nil
}

func decideRequest(s game.State, greedy bool) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"state":  encodeState(s),
		"greedy": greedy,
	})
}

func qValueRequest(s game.State, a game.Action) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"state":  encodeState(s),
		"action": a.String(),
	})
}

// #endregion message-codec
