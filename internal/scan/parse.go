package scan

import (
	"fmt"

	"wristbeacon/internal/payload"
)

// ParseFrame rebuilds the [mfg, status, counter] triple from BlueZ's view
// of the manufacturer structure and decodes it.
func ParseFrame(companyID uint16, data []byte) (payload.Frame, error) {
	if len(data) < 1 {
		return payload.Frame{}, fmt.Errorf("%w: no counter byte", payload.ErrShortPayload)
	}
	return payload.DecodeManufacturer([]byte{byte(companyID), byte(companyID >> 8), data[0]})
}
