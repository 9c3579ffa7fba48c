package runtime

import (
	"net/http"
	"strings"

	jsoncodec "github.com/drblury/unitcast/internal/runtime/jsoncodec"
)

// NetworkStatus is the JSON document served on /api/network.
type NetworkStatus struct {
	Channel      string   `json:"channel"`
	Unit         string   `json:"unit"`
	PubSubSystem string   `json:"pubsubSystem"`
	Healthy      bool     `json:"healthy"`
	Error        string   `json:"error,omitempty"`
	Subscribed   bool     `json:"subscribed"`
	PayloadTypes []string `json:"payloadTypes"`
	Handled      []string `json:"handled"`
	OpenSessions int      `json:"openSessions"`
}

// Status returns a snapshot of the network's registrations and connection
// state.
func (n *Network) Status() NetworkStatus {
	types := n.registry.Types()
	handled := make([]string, 0, len(types))
	for _, id := range types {
		if n.registry.HasHandler(id) {
			handled = append(handled, id)
		}
	}

	st := NetworkStatus{
		Channel:      n.channel,
		Unit:         n.unit,
		PubSubSystem: n.conf.PubSubSystem,
		Healthy:      n.Healthy(),
		Subscribed:   n.Subscribed(),
		PayloadTypes: types,
		Handled:      handled,
		OpenSessions: n.engine.Len(),
	}
	if n.setupErr != nil {
		st.Error = n.setupErr.Error()
	}
	return st
}

func (n *Network) setupStatus() {
	if !n.conf.StatusEnabled {
		return
	}
	n.RegisterHTTPHandler(n.conf.StatusPort, "/api/network", http.HandlerFunc(n.handleGetStatus))
}

func (n *Network) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if origin := n.allowedCORSOrigin(r.Header.Get("Origin")); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := jsoncodec.Marshal(n.Status())
	if err != nil {
		n.logger.Error("Failed to encode network status", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body)
}

// allowedCORSOrigin returns the Access-Control-Allow-Origin value for a
// request origin, or "" when the origin is not allowed.
func (n *Network) allowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range n.conf.StatusCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
