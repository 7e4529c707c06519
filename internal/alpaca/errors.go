package alpaca

import "fmt"

// Transport-level error codes. The stream and the historical path both
// report failures through these; a feed decides recoverability against a
// configured table, defaulting to DefaultRecoverableCodes.
const (
	CodeRequestError         = 599
	CodeStreamFailure        = 598
	CodeUnsupportedTimeFrame = 597
	CodeNetworkError         = 596
)

// APIError is a coded broker or transport failure.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca: error code %d (%s)", e.Code, e.Message)
}

// DefaultRecoverableCodes is the set of transport codes a feed treats as
// reconnectable. The upstream API may renumber codes, so the set is a
// configuration table rather than a hard-wired check.
func DefaultRecoverableCodes() map[int]struct{} {
	return map[int]struct{}{
		CodeRequestError:  {},
		CodeStreamFailure: {},
		CodeNetworkError:  {},
	}
}
