package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonUnknownFunction ReasonCode = "unknown_function"
	ReasonValidation      ReasonCode = "validation"
	ReasonHandlerFailure  ReasonCode = "handler_failure"
	ReasonHandlerTimeout  ReasonCode = "handler_timeout"
	ReasonBadResult       ReasonCode = "bad_result"

	ReasonGatewaySend ReasonCode = "gateway_send"
	ReasonRoundLimit  ReasonCode = "round_limit"

	ReasonCaptureUnavailable ReasonCode = "capture_unavailable"
)
