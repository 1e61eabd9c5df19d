package shared

import (
	"fmt"
)

// MalformedTickError describes an inbound payload that could not be normalized
// into a tick. The offending payload is dropped and the stream continues.
type MalformedTickError struct {
	Venue  string
	Symbol string
	Reason string
}

// Error satisfies the error interface.
func (e *MalformedTickError) Error() string {
	return fmt.Sprintf("malformed tick for %s: %s", MarketKey(e.Venue, e.Symbol), e.Reason)
}
