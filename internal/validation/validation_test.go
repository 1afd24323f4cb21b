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

package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type validationTestSuite struct {
	suite.Suite
}

func TestValidation(t *testing.T) {
	suite.Run(t, new(validationTestSuite))
}

func (s *validationTestSuite) TestChain() {
	s.Run("with all errors", func() {
		err := New().
			AddAssertion(false, "first").
			AddAssertion(true, "never").
			AddValidator(NewPositiveDurationValidator("PingInterval", 0)).
			Validate()
		s.Require().Error(err)
		s.Assert().Contains(err.Error(), "first")
		s.Assert().Contains(err.Error(), "PingInterval must be greater than zero")
		s.Assert().NotContains(err.Error(), "never")
	})
	s.Run("with fail fast", func() {
		err := New(FailFast()).
			AddAssertion(false, "first").
			AddAssertion(false, "second").
			Validate()
		s.Require().EqualError(err, "first")
	})
	s.Run("with no violations", func() {
		chain := New().AddValidator(NewPositiveDurationValidator("DeadAfter", time.Second))
		s.Assert().NoError(chain.Validate())
		s.Assert().NoError(chain.Validate())
	})
}

func (s *validationTestSuite) TestMultiaddr() {
	s.Assert().NoError(NewMultiaddrValidator("/ip4/0.0.0.0/tcp/0").Validate())
	s.Assert().NoError(NewMultiaddrValidator("/ip4/0.0.0.0/udp/0/quic-v1").Validate())
	s.Assert().Error(NewMultiaddrValidator("127.0.0.1:4001").Validate())

	const bootstrap = "/ip4/104.131.131.82/tcp/4001/p2p/QmaCpDMGvV2BGHeYERUEnRQAwe3N8SzbUtfsmvsqQLuvuJ"
	s.Assert().NoError(NewPeerAddrValidator(bootstrap).Validate())
	s.Assert().Error(NewPeerAddrValidator("/ip4/104.131.131.82/tcp/4001").Validate())
}
