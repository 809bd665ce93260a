package tinygo

import (
	"fmt"
	"strconv"

	"github.com/srg/lifebox/internal/device"
	"tinygo.org/x/bluetooth"
)

// parseUUID accepts any form device.NormalizeUUID understands, including
// 16-bit SIG short forms that bluetooth.ParseUUID rejects.
func parseUUID(s string) (bluetooth.UUID, error) {
	n := device.NormalizeUUID(s)
	switch len(n) {
	case 4:
		v, err := strconv.ParseUint(n, 16, 16)
		if err != nil {
			return bluetooth.UUID{}, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		return bluetooth.New16BitUUID(uint16(v)), nil
	case 8:
		v, err := strconv.ParseUint(n, 16, 32)
		if err != nil {
			return bluetooth.UUID{}, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		return bluetooth.New32BitUUID(uint32(v)), nil
	case 32:
		return bluetooth.ParseUUID(n[0:8] + "-" + n[8:12] + "-" + n[12:16] + "-" + n[16:20] + "-" + n[20:32])
	default:
		return bluetooth.UUID{}, fmt.Errorf("invalid UUID %q", s)
	}
}
