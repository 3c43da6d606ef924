package ble

import (
	"context"
	"fmt"
	"time"
)

// Discover scans for Anova cookers for up to timeout and returns what it
// found. Devices are matched by the Anova service UUID or by the advertised
// name prefix, whichever the cooker happens to broadcast.
func Discover(adapter Adapter, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := adapter.Scan(ctx, ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	return devices, nil
}
