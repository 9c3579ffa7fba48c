package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/unitcast/internal/runtime/envelope"
	errspkg "github.com/drblury/unitcast/internal/runtime/errors"
	"github.com/drblury/unitcast/internal/runtime/feedback"
	metadatapkg "github.com/drblury/unitcast/internal/runtime/metadata"
)

func TestRegisterPayload_Validations(t *testing.T) {
	handler := func(context.Context, *pingPayload) {}
	respond := func(context.Context, *statusRequest) (feedback.Carrier, error) { return nil, nil }

	assert.ErrorIs(t, RegisterPayload(nil, "test.Ping", handler), errspkg.ErrNetworkRequired)
	assert.ErrorIs(t, RegisterPayloadType[pingPayload](nil, "test.Ping"), errspkg.ErrNetworkRequired)
	assert.ErrorIs(t, RegisterResponder(nil, "test.StatusRequest", respond), errspkg.ErrNetworkRequired)

	n, _ := recordingNetwork(t, "a")
	assert.ErrorIs(t, RegisterPayload[pingPayload](n, "test.Ping", nil), errspkg.ErrHandlerRequired)
	assert.ErrorIs(t, RegisterResponder[statusRequest](n, "test.StatusRequest", nil), errspkg.ErrHandlerRequired)
	assert.ErrorIs(t, RegisterPayloadType[pingPayload](n, "bad&id"), envelope.ErrInvalidTypeID)
}

func TestRegisterPayload_InstallsHandler(t *testing.T) {
	n, _ := recordingNetwork(t, "a")

	var got *pingPayload
	require.NoError(t, RegisterPayload(n, "test.Ping", func(ctx context.Context, p *pingPayload) { got = p }))
	assert.True(t, n.Registry().HasHandler("test.Ping"))

	wire, err := envelope.Encode("test.Ping", &pingPayload{Text: "hi"}, "b")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, n.Dispatcher().Dispatch(context.Background(), testChannel, wire))
	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, "b", got.Origin())
}

func TestRegisterPayloadType_HasNoHandler(t *testing.T) {
	n, _ := recordingNetwork(t, "a")
	require.NoError(t, RegisterPayloadType[pingPayload](n, "test.Ping"))

	assert.False(t, n.Registry().HasHandler("test.Ping"))
	assert.Contains(t, n.Registry().Types(), "test.Ping")
}

func requestWire(t *testing.T, id string, state feedback.State) string {
	t.Helper()
	req := &statusRequest{Base: feedback.Base{ID: id, State: state}, Question: "up?"}
	wire, err := envelope.Encode("test.StatusRequest", req, "a")
	require.NoError(t, err)
	return wire
}

func TestRegisterResponder_AnswersRequests(t *testing.T) {
	n, pub := recordingNetwork(t, "b")
	require.NoError(t, RegisterPayloadType[statusResponse](n, "test.StatusResponse"))

	var asked string
	require.NoError(t, RegisterResponder(n, "test.StatusRequest", func(ctx context.Context, req *statusRequest) (feedback.Carrier, error) {
		asked = req.Question
		return &statusResponse{Answer: "yes"}, nil
	}))

	outcome := n.Dispatcher().Dispatch(context.Background(), testChannel, requestWire(t, "fb-1", feedback.StateRequest))
	assert.Equal(t, OutcomeDispatched, outcome)
	assert.Equal(t, "up?", asked)

	published := pub.Messages(testChannel)
	require.Len(t, published, 1)
	assert.Equal(t, "fb-1", published[0].Metadata.Get(metadatapkg.KeyFeedbackID))
	assert.Equal(t, "test.StatusResponse", published[0].Metadata.Get(metadatapkg.KeyPayloadType))
	assert.Equal(t, "b", published[0].Metadata.Get(metadatapkg.KeyOrigin))
}

func TestRegisterResponder_IgnoresResponses(t *testing.T) {
	n, pub := recordingNetwork(t, "b")
	require.NoError(t, RegisterPayloadType[statusResponse](n, "test.StatusResponse"))

	calls := 0
	require.NoError(t, RegisterResponder(n, "test.StatusRequest", func(ctx context.Context, req *statusRequest) (feedback.Carrier, error) {
		calls++
		return &statusResponse{}, nil
	}))

	n.Dispatcher().Dispatch(context.Background(), testChannel, requestWire(t, "fb-unknown", feedback.StateResponse))

	assert.Zero(t, calls)
	assert.Empty(t, pub.Messages(testChannel))
}

func TestRegisterResponder_SendsNothing(t *testing.T) {
	cases := []struct {
		name string
		resp feedback.Carrier
		err  error
	}{
		{name: "responder error", resp: &statusResponse{}, err: errors.New("cannot answer")},
		{name: "nil response"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, pub := recordingNetwork(t, "b")
			require.NoError(t, RegisterPayloadType[statusResponse](n, "test.StatusResponse"))
			require.NoError(t, RegisterResponder(n, "test.StatusRequest", func(context.Context, *statusRequest) (feedback.Carrier, error) {
				return tc.resp, tc.err
			}))

			outcome := n.Dispatcher().Dispatch(context.Background(), testChannel, requestWire(t, "fb-2", feedback.StateRequest))
			assert.Equal(t, OutcomeDispatched, outcome)
			assert.Empty(t, pub.Messages(testChannel))
		})
	}
}

func TestRegisterResponder_ResponseTypeUnregistered(t *testing.T) {
	n, pub := recordingNetwork(t, "b")
	require.NoError(t, RegisterResponder(n, "test.StatusRequest", func(context.Context, *statusRequest) (feedback.Carrier, error) {
		return &statusResponse{}, nil
	}))

	assert.NotPanics(t, func() {
		n.Dispatcher().Dispatch(context.Background(), testChannel, requestWire(t, "fb-3", feedback.StateRequest))
	})
	assert.Empty(t, pub.Messages(testChannel))
}
