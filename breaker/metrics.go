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

package breaker

import (
	"fmt"
	"time"
)

// Metrics represents a snapshot of the breaker counters and state.
type Metrics struct {
	State               State
	Successes           uint64
	Failures            uint64
	Rejections          uint64
	ConsecutiveFailures uint64
	LastFailure         time.Time
	LastSuccess         time.Time
	OpenUntil           time.Time
}

// String returns human-readable metrics for debugging.
func (m Metrics) String() string {
	return fmt.Sprintf("state=%s success=%d fail=%d rejected=%d consecutive=%d",
		m.State, m.Successes, m.Failures, m.Rejections, m.ConsecutiveFailures)
}
