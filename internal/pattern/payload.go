package pattern

import (
	"encoding/binary"
	"fmt"
	"math"
)

// escape introduces a 32 bits duration in a payload.
const escape = 0

// DecodeTimings decodes a decrypted payload into microsecond durations.
//
// Durations are little-endian uint16 values. A zero value escapes the following little-endian
// uint32, used for durations that do not fit 16 bits such as long lead-out gaps.
func DecodeTimings(payload []byte) ([]uint32, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrPayload)
	}

	timing := make([]uint32, 0, len(payload)/2)
	for i := 0; i < len(payload); {
		if len(payload)-i < 2 {
			return nil, fmt.Errorf("%w: truncated duration at byte %d", ErrPayload, i)
		}
		v := uint32(binary.LittleEndian.Uint16(payload[i:]))
		i += 2

		if v == escape {
			if len(payload)-i < 4 {
				return nil, fmt.Errorf("%w: truncated long duration at byte %d", ErrPayload, i)
			}
			v = binary.LittleEndian.Uint32(payload[i:])
			i += 4
			if v == 0 {
				return nil, fmt.Errorf("%w: zero duration at byte %d", ErrPayload, i-4)
			}
		}
		timing = append(timing, v)
	}

	return timing, nil
}

// EncodeTimings is the inverse of DecodeTimings.
func EncodeTimings(timing []uint32) []byte {
	var payload []byte
	for _, t := range timing {
		if t > 0 && t <= math.MaxUint16 {
			payload = binary.LittleEndian.AppendUint16(payload, uint16(t))
			continue
		}
		payload = binary.LittleEndian.AppendUint16(payload, escape)
		payload = binary.LittleEndian.AppendUint32(payload, t)
	}
	return payload
}
