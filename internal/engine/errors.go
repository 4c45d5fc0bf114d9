package engine

import "fmt"

type Kind string

const (
	KindParse            Kind = "parse_error"
	KindConfiguration    Kind = "configuration_error"
	KindValidation       Kind = "validation_error"
	KindStale            Kind = "stale_alert"
	KindQuoteUnavailable Kind = "quote_unavailable"
	KindCalculation      Kind = "calculation_error"
	KindBroker           Kind = "broker_error"
)

// Retryable: повтор алерта имеет смысл только при недоступной котировке.
func (k Kind) Retryable() bool {
	return k == KindQuoteUnavailable
}

type Rejection struct {
	Kind    Kind
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err == nil {
		return fmt.Sprintf("%s: %s", r.Kind, r.Message)
	}
	return fmt.Sprintf("%s: %s: %v", r.Kind, r.Message, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func reject(kind Kind, err error, format string, args ...any) *Rejection {
	return &Rejection{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
