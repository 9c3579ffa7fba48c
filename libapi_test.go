package unitcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type greeting struct {
	Base
	Text string `json:"text"`
}

type headcountRequest struct {
	FeedbackBase
}

type headcountResponse struct {
	FeedbackBase
}

func TestRegistrationExportsPropagateErrors(t *testing.T) {
	if err := RegisterPayload(nil, "demo.Greeting", func(context.Context, *greeting) {}); !errors.Is(err, ErrNetworkRequired) {
		t.Fatalf("expected network required error, got %v", err)
	}
	if err := RegisterPayloadType[greeting](nil, "demo.Greeting"); !errors.Is(err, ErrNetworkRequired) {
		t.Fatalf("expected network required error, got %v", err)
	}
	respond := func(context.Context, *headcountRequest) (FeedbackCarrier, error) { return nil, nil }
	if err := RegisterResponder(nil, "demo.HeadcountRequest", respond); !errors.Is(err, ErrNetworkRequired) {
		t.Fatalf("expected network required error, got %v", err)
	}
}

func TestNetworkExports(t *testing.T) {
	conf := &Config{
		Network:      "demo",
		Unit:         "a",
		PubSubSystem: "channel",
		TransportURI: t.Name(),
		RetryDelay:   20 * time.Millisecond,
	}
	n, err := TryNewNetwork(conf, DiscardLogger(), context.Background(), NetworkDependencies{
		MetricsRegisterer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = n.Close() }()

	if err := RegisterPayload(n, "demo.Greeting", func(context.Context, *greeting) {}); err != nil {
		t.Fatalf("register greeting: %v", err)
	}
	if err := RegisterPayloadType[headcountResponse](n, "demo.HeadcountResponse"); err != nil {
		t.Fatalf("register headcount response: %v", err)
	}
	if err := RegisterResponder(n, "demo.HeadcountRequest", func(context.Context, *headcountRequest) (FeedbackCarrier, error) {
		return &headcountResponse{}, nil
	}); err != nil {
		t.Fatalf("register responder: %v", err)
	}

	st := n.Status()
	if len(st.PayloadTypes) != 3 || len(st.Handled) != 2 {
		t.Fatalf("unexpected status %+v", st)
	}
	if caps := n.Capabilities(); caps.Name != "channel" || !caps.LosesMessagesWhileDisconnected() {
		t.Fatalf("unexpected channel capabilities %+v", caps)
	}
}

func TestTryNewNetworkRejectsNilConfig(t *testing.T) {
	_, err := TryNewNetwork(nil, DiscardLogger(), context.Background(), NetworkDependencies{})
	if !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}
	var cfgErr ConfigValidationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigValidationError, got %T", err)
	}
}

func TestEnvelopeExports(t *testing.T) {
	wire, err := EncodeEnvelope("demo.Greeting", &greeting{Text: "a&b"}, "a")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	typeID, body, err := DecodeEnvelope(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if typeID != "demo.Greeting" {
		t.Fatalf("expected demo.Greeting, got %q", typeID)
	}
	var g greeting
	if err := Unmarshal([]byte(body), &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if g.Text != "a&b" || g.Origin() != "a" {
		t.Fatalf("unexpected payload %+v", g)
	}

	if _, _, err := DecodeEnvelope("justsometext"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected malformed envelope error, got %v", err)
	}
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata(MetadataKeyOrigin, "a")
	if md[MetadataKeyOrigin] != "a" {
		t.Fatalf("expected metadata to contain origin, got %#v", md)
	}
}

func TestFeedbackConditionExports(t *testing.T) {
	result := FeedbackResult{Respondents: []string{"b", "c"}}
	if !ExpectOrigins("b", "c")(result) {
		t.Fatal("expected origin condition to hold")
	}
	if ExpectResponses(3)(result) {
		t.Fatal("expected response count condition to fail")
	}
}

func TestNewIDExport(t *testing.T) {
	if NewID() == NewID() {
		t.Fatal("expected unique ids")
	}
}
