package policy

import (
	"context"
	"math/rand/v2"
	"net"
	"testing"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	cornered = game.State{Health: game.BandLow, EnemyRange: game.BandLow}
	roaming  = game.State{Health: game.BandHigh, EnemyRange: game.BandHigh}
)

// #region helpers
func trainedAgent(t *testing.T, epsilon float64) *qlearn.Agent[game.State, game.Action] {
	t.Helper()
	cfg := qlearn.DefaultConfig()
	cfg.ExplorationRate = epsilon
	a, err := qlearn.New[game.State](cfg, game.Actions(), rand.New(rand.NewPCG(5, 6)))
	require.NoError(t, err)
	_, err = a.Learn(cornered, game.ActionRetreat, 10, roaming)
	require.NoError(t, err)
	return a
}

func startServer(t *testing.T, d Decider) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewServer(d, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClientWithConn(conn)
}

// #endregion helpers

func TestDecideActionGreedy(t *testing.T) {
	c := startServer(t, trainedAgent(t, 0))

	got, err := c.DecideAction(context.Background(), cornered, true)
	require.NoError(t, err)
	assert.Equal(t, game.ActionRetreat, got)

	// Untrained state: all zero, first action in enumeration order.
	got, err = c.DecideAction(context.Background(), roaming, false)
	require.NoError(t, err)
	assert.Equal(t, game.ActionAttack, got)
}

func TestQValue(t *testing.T) {
	c := startServer(t, trainedAgent(t, 0.5))

	v, err := c.QValue(context.Background(), cornered, game.ActionRetreat)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12) // alpha 0.1 * reward 10

	v, err = c.QValue(context.Background(), cornered, game.ActionAssist)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestInvalidStateIsInvalidArgument(t *testing.T) {
	c := startServer(t, trainedAgent(t, 0))

	_, err := c.DecideAction(context.Background(), game.State{}, true)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.QValue(context.Background(), game.State{}, game.ActionAttack)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServerRejectsMalformedRequests(t *testing.T) {
	s := NewServer(trainedAgent(t, 0), nil)

	req, err := structpb.NewStruct(map[string]any{"state": "cornered"})
	require.NoError(t, err)
	_, err = s.DecideAction(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req, err = structpb.NewStruct(map[string]any{
		"state":  map[string]any{"health": "low", "enemy_range": "low"},
		"action": "dance",
	})
	require.NoError(t, err)
	_, err = s.QValue(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStateCodecRoundTrip(t *testing.T) {
	in := game.State{Health: game.BandMid, EnemyRange: game.BandHigh, AllyNearby: true, Stuck: true}
	req, err := decideRequest(in, false)
	require.NoError(t, err)
	out, err := decodeState(req.GetFields()["state"])
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
