package contract

import (
	"fmt"

	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
)

// DecodeEnum maps a raw enum byte onto its declared domain. A byte outside
// the domain is a DecodeError, never a default value.
func DecodeEnum[T ~uint8](what string, raw uint8, domain []T) (T, error) {
	for _, v := range domain {
		if uint8(v) == raw {
			return v, nil
		}
	}
	var zero T
	return zero, chainerr.Decode(what, fmt.Errorf("undeclared value %d", raw))
}
