package apierrors

import "fmt"

// Error carries the normalized records for one failed request. It is the
// error value feature clients return for backend business-rule failures;
// transport-level failures use the transport and refresh sentinels
// instead.
type Error struct {
	Status  int
	Records []Record
}

// FromResponse normalizes an HTTP error response body into an Error.
func FromResponse(status int, body []byte) *Error {
	return &Error{Status: status, Records: NormalizeBody(body)}
}

// Primary returns the record callers should display first: the non-field
// entry when present (NormalizeBody orders it first), otherwise the first
// record.
func (e *Error) Primary() Record {
	if len(e.Records) == 0 {
		return Record{Kind: KindUnknown}
	}
	return e.Records[0]
}

func (e *Error) Error() string {
	primary := e.Primary()
	if primary.Raw != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, primary.Kind, primary.Raw)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, primary.Kind)
}
