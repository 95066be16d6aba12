package policy

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #region client-struct
// Client calls a remote PolicyService.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a PolicyService at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing with in-process listeners.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region decide-action
// DecideAction asks the service for an action in state.
func (c *Client) DecideAction(ctx context.Context, state game.State, greedy bool) (game.Action, error) {
	req, err := decideRequest(state, greedy)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, decideActionMethod, req, out); err != nil {
		return 0, fmt.Errorf("decide action rpc: %w", err)
	}
	return game.ParseAction(out.GetValue())
}

// #endregion decide-action

// #region q-value
// QValue reads one stored value.
func (c *Client) QValue(ctx context.Context, state game.State, action game.Action) (float64, error) {
	req, err := qValueRequest(state, action)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	out := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, qValueMethod, req, out); err != nil {
		return 0, fmt.Errorf("q value rpc: %w", err)
	}
	return out.GetValue(), nil
}

// #endregion q-value
