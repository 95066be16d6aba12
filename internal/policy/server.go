package policy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Decider is the part of the agent the service exposes.
// *qlearn.Agent[game.State, game.Action] satisfies it.
type Decider interface {
	DecideAction(state game.State) (game.Action, error)
	Greedy(state game.State) (game.Action, error)
	QValue(state game.State, action game.Action) float64
}

// Server implements PolicyServiceServer over a Decider.
type Server struct {
	decider Decider
	logger  *slog.Logger
}

// NewServer wraps d. A nil logger discards.
func NewServer(d Decider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{decider: d, logger: logger}
}

// DecideAction returns the epsilon-greedy (or greedy, if requested) action.
func (s *Server) DecideAction(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	f := req.GetFields()
	state, err := decodeState(f["state"])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var action game.Action
	if f["greedy"].GetBoolValue() {
		action, err = s.decider.Greedy(state)
	} else {
		action, err = s.decider.DecideAction(state)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug("decide action", "state", state.String(), "action", action.String())
	return wrapperspb.String(action.String()), nil
}

// QValue returns the stored value of (state, action), 0 if never learned.
func (s *Server) QValue(ctx context.Context, req *structpb.Struct) (*wrapperspb.DoubleValue, error) {
	f := req.GetFields()
	state, err := decodeState(f["state"])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !state.Valid() {
		return nil, status.Error(codes.InvalidArgument, qlearn.ErrInvalidState.Error())
	}
	action, err := game.ParseAction(f["action"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.Double(s.decider.QValue(state, action)), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, qlearn.ErrInvalidState), errors.Is(err, qlearn.ErrUnknownAction):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
