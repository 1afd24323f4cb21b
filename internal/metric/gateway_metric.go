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

// Attribute keys of the gateway instruments
const (
	KindKey   = attribute.Key("kind")
	ReasonKey = attribute.Key("reason")
)

// Reasons a gateway drops an inbound frame
const (
	DropDecode   = "decode"
	DropVerify   = "verify"
	DropSender   = "sender_mismatch"
	DropLate     = "late_reply"
	DropNoTarget = "no_target"
	DropPayload  = "payload"
)

// GatewayMetric defines the gateway instrumentation
type GatewayMetric struct {
	// Specifies the total number of inbound frames accepted
	framesReceived metric.Int64Counter
	// Specifies the total number of inbound frames dropped
	framesDropped metric.Int64Counter
	// Specifies the total number of outbound frames that could not be sent
	sendFailures metric.Int64Counter
	// Specifies the number of requests waiting for a reply
	pendingTasks metric.Int64ObservableGauge

	registration metric.Registration
}

// NewGatewayMetric creates an instance of GatewayMetric.
// pending is polled on every collection to report the pending tasks gauge.
func NewGatewayMetric(meter metric.Meter, pending func() int64) (*GatewayMetric, error) {
	gatewayMetric := new(GatewayMetric)
	var err error

	if gatewayMetric.framesReceived, err = meter.Int64Counter(
		"gateway_frames_received",
		metric.WithDescription("Total number of inbound frames accepted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create framesReceived instrument, %w", err)
	}

	if gatewayMetric.framesDropped, err = meter.Int64Counter(
		"gateway_frames_dropped",
		metric.WithDescription("Total number of inbound frames dropped"),
	); err != nil {
		return nil, fmt.Errorf("failed to create framesDropped instrument, %w", err)
	}

	if gatewayMetric.sendFailures, err = meter.Int64Counter(
		"gateway_send_failures",
		metric.WithDescription("Total number of outbound frames that could not be sent"),
	); err != nil {
		return nil, fmt.Errorf("failed to create sendFailures instrument, %w", err)
	}

	if gatewayMetric.pendingTasks, err = meter.Int64ObservableGauge(
		"gateway_pending_tasks",
		metric.WithDescription("Number of requests waiting for a reply"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pendingTasks instrument, %w", err)
	}

	if gatewayMetric.registration, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(gatewayMetric.pendingTasks, pending())
		return nil
	}, gatewayMetric.pendingTasks); err != nil {
		return nil, fmt.Errorf("failed to register pendingTasks callback, %w", err)
	}

	return gatewayMetric, nil
}

// FrameReceived records an accepted inbound frame of the given kind
func (x *GatewayMetric) FrameReceived(ctx context.Context, kind string) {
	x.framesReceived.Add(ctx, 1, metric.WithAttributes(KindKey.String(kind)))
}

// FrameDropped records a dropped inbound frame
func (x *GatewayMetric) FrameDropped(ctx context.Context, reason string) {
	x.framesDropped.Add(ctx, 1, metric.WithAttributes(ReasonKey.String(reason)))
}

// SendFailed records an outbound frame that could not be sent
func (x *GatewayMetric) SendFailed(ctx context.Context, kind string) {
	x.sendFailures.Add(ctx, 1, metric.WithAttributes(KindKey.String(kind)))
}

// Close unregisters the pending tasks callback
func (x *GatewayMetric) Close() error {
	return x.registration.Unregister()
}
