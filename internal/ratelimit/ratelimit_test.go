package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type LimiterTestSuite struct {
	suite.Suite
}

func (s *LimiterTestSuite) TestNewValidation() {
	_, err := New(0)
	s.ErrorIs(err, ErrBadRate)

	_, err = New(-10)
	s.ErrorIs(err, ErrBadRate)

	l, err := New(100)
	s.NoError(err)
	s.NotNil(l)
}

func (s *LimiterTestSuite) TestNilLimiterIsUnlimited() {
	var l *Limiter
	for i := 0; i < 1000; i++ {
		s.NoError(l.Wait(context.Background()))
	}
}

func (s *LimiterTestSuite) TestBurstThenThrottle() {
	l, err := New(100)
	s.Require().NoError(err)

	// The initial burst admits the full bucket without sleeping.
	start := time.Now()
	for i := 0; i < 100; i++ {
		s.Require().NoError(l.Wait(context.Background()))
	}
	s.Less(time.Since(start), 500*time.Millisecond)

	// The bucket is now empty; further admissions must be paced.
	start = time.Now()
	for i := 0; i < 10; i++ {
		s.Require().NoError(l.Wait(context.Background()))
	}
	s.GreaterOrEqual(time.Since(start), 50*time.Millisecond)
}

func (s *LimiterTestSuite) TestWaitHonorsCancellation() {
	l, err := New(1)
	s.Require().NoError(err)

	// Drain the bucket so the next Wait has to sleep.
	s.Require().NoError(l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = l.Wait(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterTestSuite))
}
