package unitcast

import (
	runtimepkg "github.com/drblury/unitcast/internal/runtime"
	configpkg "github.com/drblury/unitcast/internal/runtime/config"
	"github.com/drblury/unitcast/internal/runtime/envelope"
	errspkg "github.com/drblury/unitcast/internal/runtime/errors"
	"github.com/drblury/unitcast/internal/runtime/feedback"
	idspkg "github.com/drblury/unitcast/internal/runtime/ids"
	jsoncodec "github.com/drblury/unitcast/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/unitcast/internal/runtime/logging"
	metadatapkg "github.com/drblury/unitcast/internal/runtime/metadata"
	"github.com/drblury/unitcast/internal/runtime/payload"
	transportpkg "github.com/drblury/unitcast/internal/runtime/transport"
	newtransport "github.com/drblury/unitcast/transport"
)

type (
	Config               = configpkg.Config
	Network              = runtimepkg.Network
	NetworkDependencies  = runtimepkg.NetworkDependencies
	NetworkStatus        = runtimepkg.NetworkStatus
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	Payload                   = payload.Payload
	Base                      = payload.Base
	PayloadHandler[P Payload] = payload.Handler[P]

	FeedbackBase      = feedback.Base
	FeedbackCarrier   = feedback.Carrier
	FeedbackState     = feedback.State
	FeedbackOptions   = feedback.Options
	FeedbackCondition = feedback.Condition
	FeedbackResult    = feedback.Result
	FeedbackResponse  = feedback.Response
	FeedbackStatus    = feedback.Status
	FeedbackSession   = feedback.Session
	Responder[P any]  = runtimepkg.Responder[P]

	Dispatcher    = runtimepkg.Dispatcher
	Outcome       = runtimepkg.Outcome
	DispatchInfo  = runtimepkg.DispatchInfo
	DispatchHooks = runtimepkg.DispatchHooks
	Metrics       = runtimepkg.Metrics

	ConnectionEvent     = runtimepkg.ConnectionEvent
	ConnectionEventKind = runtimepkg.ConnectionEventKind

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Transport capabilities
	Capabilities = transportpkg.Capabilities

	TransportBuilder  = newtransport.Builder
	TransportConfig   = newtransport.Config
	TransportRegistry = newtransport.Registry
)

var (
	NewNetwork     = runtimepkg.NewNetwork
	TryNewNetwork  = runtimepkg.TryNewNetwork
	ValidateConfig = configpkg.ValidateConfig
	LoadConfig     = configpkg.Load
	ParseConfig    = configpkg.Parse

	ExpectResponses = feedback.ExpectResponses
	ExpectOrigins   = feedback.ExpectOrigins

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	ContextWithCorrelationID = runtimepkg.ContextWithCorrelationID
	CorrelationIDFromContext = runtimepkg.CorrelationIDFromContext

	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks
	NewMetrics    = runtimepkg.NewMetrics

	GetCapabilities = transportpkg.GetCapabilities

	// Import individual transports via: _ "github.com/drblury/unitcast/transport/kafka"
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build
	NewTransportConfigError  = newtransport.NewConfigError
	IsTransportConfigError   = newtransport.IsConfigError

	EncodeEnvelope = envelope.Encode
	DecodeEnvelope = envelope.Decode

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrNetworkRequired         = errspkg.ErrNetworkRequired
	ErrHandlerRequired         = errspkg.ErrHandlerRequired
	ErrPayloadRequired         = errspkg.ErrPayloadRequired
	ErrPayloadTypeUnregistered = errspkg.ErrPayloadTypeUnregistered
	ErrConfigRequired          = errspkg.ErrConfigRequired
	ErrTransportUnavailable    = errspkg.ErrTransportUnavailable
	ErrNetworkClosed           = errspkg.ErrNetworkClosed
	ErrAlreadyStarted          = errspkg.ErrAlreadyStarted
	ErrFeedbackIDMissing       = errspkg.ErrFeedbackIDMissing
	ErrMalformedEnvelope       = envelope.ErrMalformedEnvelope
	ErrInvalidTypeID           = envelope.ErrInvalidTypeID
	ErrSessionNotFound         = feedback.ErrSessionNotFound
	ErrSessionAbandoned        = feedback.ErrSessionAbandoned
	ErrInvalidTimeout          = feedback.ErrInvalidTimeout

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	DiscardLogger             = loggingpkg.Discard

	NewMetadata = metadatapkg.New

	NewID = idspkg.New
)

const (
	StateRequest  = feedback.StateRequest
	StateResponse = feedback.StateResponse

	StatusOpen      = feedback.StatusOpen
	StatusResolved  = feedback.StatusResolved
	StatusExpired   = feedback.StatusExpired
	StatusAbandoned = feedback.StatusAbandoned

	EventSubscribed       = runtimepkg.EventSubscribed
	EventSubscriptionLost = runtimepkg.EventSubscriptionLost
	EventReconnectFailed  = runtimepkg.EventReconnectFailed

	OutcomeDispatched         = runtimepkg.OutcomeDispatched
	OutcomeUnhandled          = runtimepkg.OutcomeUnhandled
	OutcomeFeedbackRecorded   = runtimepkg.OutcomeFeedbackRecorded
	OutcomeHandlerPanicked    = runtimepkg.OutcomeHandlerPanicked
	OutcomeDroppedChannel     = runtimepkg.OutcomeDroppedChannel
	OutcomeDroppedMalformed   = runtimepkg.OutcomeDroppedMalformed
	OutcomeDroppedUnknownType = runtimepkg.OutcomeDroppedUnknownType
	OutcomeDroppedUndecodable = runtimepkg.OutcomeDroppedUndecodable
	OutcomeDroppedSelf        = runtimepkg.OutcomeDroppedSelf

	EnvelopeDelimiter = envelope.Delimiter
)

// Metadata keys stamped on every broadcast message.
const (
	MetadataKeyOrigin      = metadatapkg.KeyOrigin
	MetadataKeyPayloadType = metadatapkg.KeyPayloadType
	MetadataKeyChannel     = metadatapkg.KeyChannel
	MetadataKeyFeedbackID  = metadatapkg.KeyFeedbackID
)

func RegisterPayload[T any, P payload.PayloadPointer[T]](n *Network, typeID string, handler PayloadHandler[P]) error {
	return runtimepkg.RegisterPayload[T, P](n, typeID, handler)
}

func RegisterPayloadType[T any, P payload.PayloadPointer[T]](n *Network, typeID string) error {
	return runtimepkg.RegisterPayloadType[T, P](n, typeID)
}

func RegisterResponder[T any, P runtimepkg.CarrierPointer[T]](n *Network, typeID string, respond Responder[P]) error {
	return runtimepkg.RegisterResponder[T, P](n, typeID, respond)
}
