// Package devicefactory selects the BLE backend that implements device.Transport.
package devicefactory

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
	goble "github.com/srg/lifebox/internal/device/go-ble"
	"github.com/srg/lifebox/internal/device/tinygo"
)

// Kind names a transport backend.
type Kind string

const (
	KindGoBLE  Kind = "goble"
	KindTinyGo Kind = "tinygo"
)

// DefaultKind is used when no backend is configured.
const DefaultKind = KindGoBLE

// Kinds lists the supported backends.
func Kinds() []Kind {
	return []Kind{KindGoBLE, KindTinyGo}
}

// ParseKind resolves a backend name, case-insensitively. Empty selects DefaultKind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultKind, nil
	case KindGoBLE, "go-ble":
		return KindGoBLE, nil
	case KindTinyGo:
		return KindTinyGo, nil
	default:
		return "", fmt.Errorf("%w: transport %q (want one of %v)", device.ErrUnsupported, s, Kinds())
	}
}

// TransportFactory opens a transport of the given kind.
// This is a variable so that it can be overridden in tests.
var TransportFactory = func(kind Kind, logger *logrus.Logger) (device.Transport, error) {
	switch kind {
	case KindGoBLE:
		t, err := goble.NewTransport(logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindTinyGo:
		t, err := tinygo.NewTransport(logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: transport %q", device.ErrUnsupported, kind)
	}
}

// NewTransport parses kind and opens the matching transport.
func NewTransport(kind string, logger *logrus.Logger) (device.Transport, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.WithField("transport", string(k)).Debug("Opening BLE transport")
	}
	return TransportFactory(k, logger)
}
