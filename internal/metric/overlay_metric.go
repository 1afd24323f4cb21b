// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LivenessKey is the attribute key of the peer liveness
const LivenessKey = attribute.Key("liveness")

// OverlayMetric defines the overlay instrumentation
type OverlayMetric struct {
	// Specifies the round trip time of successful pings in milliseconds
	pingRTT metric.Int64Histogram
	// Specifies the total number of peers that changed liveness
	livenessChanges metric.Int64Counter
	// Specifies the number of connected peers
	connectedPeers metric.Int64ObservableGauge

	registration metric.Registration
}

// NewOverlayMetric creates an instance of OverlayMetric.
// connected is polled on every collection to report the connected peers gauge.
func NewOverlayMetric(meter metric.Meter, connected func() int64) (*OverlayMetric, error) {
	overlayMetric := new(OverlayMetric)
	var err error

	if overlayMetric.pingRTT, err = meter.Int64Histogram(
		"overlay_ping_rtt",
		metric.WithDescription("Round trip time of successful pings in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pingRTT instrument, %w", err)
	}

	if overlayMetric.livenessChanges, err = meter.Int64Counter(
		"overlay_liveness_changes",
		metric.WithDescription("Total number of peer liveness transitions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create livenessChanges instrument, %w", err)
	}

	if overlayMetric.connectedPeers, err = meter.Int64ObservableGauge(
		"overlay_connected_peers",
		metric.WithDescription("Number of connected peers"),
	); err != nil {
		return nil, fmt.Errorf("failed to create connectedPeers instrument, %w", err)
	}

	if overlayMetric.registration, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(overlayMetric.connectedPeers, connected())
		return nil
	}, overlayMetric.connectedPeers); err != nil {
		return nil, fmt.Errorf("failed to register connectedPeers callback, %w", err)
	}

	return overlayMetric, nil
}

// PingSucceeded records the round trip time of a successful ping
func (x *OverlayMetric) PingSucceeded(ctx context.Context, rttMillis int64) {
	x.pingRTT.Record(ctx, rttMillis)
}

// LivenessChanged records a peer entering the given liveness state
func (x *OverlayMetric) LivenessChanged(ctx context.Context, liveness string) {
	x.livenessChanges.Add(ctx, 1, metric.WithAttributes(LivenessKey.String(liveness)))
}

// Close unregisters the connected peers callback
func (x *OverlayMetric) Close() error {
	return x.registration.Unregister()
}
