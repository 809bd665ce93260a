package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
)

type bleService struct {
	client ble.Client
	svc    *ble.Service
	logger *logrus.Logger
}

func (s *bleService) UUID() string {
	return device.NormalizeUUID(s.svc.UUID.String())
}

func (s *bleService) Characteristic(ctx context.Context, uuid string) (device.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := parseUUID(uuid)
	if err != nil {
		return nil, err
	}

	chars, err := s.client.DiscoverCharacteristics([]ble.UUID{u}, s.svc)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service characteristics: %w", NormalizeError(err))
	}
	for _, c := range chars {
		if !c.UUID.Equal(u) {
			continue
		}
		// the CCCD handle is needed to subscribe
		if _, err := s.client.DiscoverDescriptors(nil, c); err != nil {
			s.logger.WithFields(logrus.Fields{
				"char_uuid": device.ShortenUUID(device.NormalizeUUID(uuid)),
				"error":     err,
			}).Debug("Failed to discover descriptors")
		}
		return &bleCharacteristic{client: s.client, char: c}, nil
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.UUID(), uuid}}
}
