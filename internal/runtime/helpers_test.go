package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/unitcast/internal/runtime/config"
	"github.com/drblury/unitcast/internal/runtime/feedback"
	loggingpkg "github.com/drblury/unitcast/internal/runtime/logging"
	"github.com/drblury/unitcast/internal/runtime/payload"
	"github.com/drblury/unitcast/transport/channel"
)

const testChannel = "net1"

type pingPayload struct {
	payload.Base
	Text string `json:"text"`
}

type echoPayload struct {
	payload.Base
	Text string `json:"text"`
}

func (*echoPayload) SendToSelf() bool { return true }

type panicPayload struct {
	payload.Base
}

type statusRequest struct {
	feedback.Base
	Question string `json:"question"`
}

type statusResponse struct {
	feedback.Base
	Answer string `json:"answer"`
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var hubSeq atomic.Int64

// newHub returns a channel transport URI no other test uses.
func newHub(t *testing.T) string {
	t.Helper()
	hub := fmt.Sprintf("%s-%d", t.Name(), hubSeq.Add(1))
	t.Cleanup(func() { _ = channel.Disconnect(hub) })
	return hub
}

func testConfig(unit, hub string) *configpkg.Config {
	return &configpkg.Config{
		Network:         testChannel,
		Unit:            unit,
		PubSubSystem:    channel.TransportName,
		TransportURI:    hub,
		RetryDelay:      20 * time.Millisecond,
		FeedbackTimeout: time.Second,
	}
}

func newTestNetwork(t *testing.T, conf *configpkg.Config, deps NetworkDependencies) *Network {
	t.Helper()
	if deps.MetricsRegisterer == nil {
		deps.MetricsRegisterer = prometheus.NewRegistry()
	}
	n, err := TryNewNetwork(conf, newTestLogger(), context.Background(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func startNetwork(t *testing.T, n *Network) {
	t.Helper()
	require.NoError(t, n.Start(context.Background()))
	waitForEvent(t, n, EventSubscribed)
}

func waitForEvent(t *testing.T, n *Network, kind ConnectionEventKind) ConnectionEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-n.ConnectionEvents():
			require.True(t, ok, "connection events closed while waiting for %s", kind)
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
			return ConnectionEvent{}
		}
	}
}
