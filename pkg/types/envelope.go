package types

// SuccessEnvelope wraps every 2xx body as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public part of a failure. Details is omitted unless the code allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewErrorEnvelope drops empty detail maps so clients never see "details": {}.
func NewErrorEnvelope(code, message string, details any) ErrorEnvelope {
	env := ErrorEnvelope{Error: APIError{Code: code, Message: message}}
	switch d := details.(type) {
	case nil:
	case map[string]any:
		if len(d) > 0 {
			env.Error.Details = d
		}
	default:
		env.Error.Details = d
	}
	return env
}
