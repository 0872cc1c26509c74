package decoder

import (
	"errors"
	"fmt"

	"github.com/eddielth/signal-monitor/telemetry"
)

var (
	// ErrFieldCountMismatch is returned when a payload holds a different
	// number of values than the equipment type declares.
	ErrFieldCountMismatch = errors.New("field count mismatch")
	// ErrFieldConversion is returned when a numeric field does not hold a
	// finite number.
	ErrFieldConversion = errors.New("field conversion failed")
	// ErrInvalidTimestamp is returned when the receipt date cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrUnsupportedEquipmentType is returned in strict mode for types
	// without a field layout, and for unknown type codes.
	ErrUnsupportedEquipmentType = errors.New("unsupported equipment type")
)

// DecodeError carries the context of a failed record. It unwraps to one of
// the sentinel errors above.
type DecodeError struct {
	RecordID int64
	Type     telemetry.EquipmentType
	Field    string
	Value    string
	Expected int
	Got      int
	Err      error
}

func (e *DecodeError) Error() string {
	switch {
	case errors.Is(e.Err, ErrFieldCountMismatch):
		return fmt.Sprintf("record %d (%s): %v: expected %d values, got %d", e.RecordID, e.Type, e.Err, e.Expected, e.Got)
	case e.Field != "":
		return fmt.Sprintf("record %d (%s): %v: cannot convert value(%s) for field(%s)", e.RecordID, e.Type, e.Err, e.Value, e.Field)
	case e.Value != "":
		return fmt.Sprintf("record %d (%s): %v: %q", e.RecordID, e.Type, e.Err, e.Value)
	default:
		return fmt.Sprintf("record %d (%s): %v", e.RecordID, e.Type, e.Err)
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
