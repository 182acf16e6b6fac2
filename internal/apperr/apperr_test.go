package apperr

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ApperrTestSuite struct {
	suite.Suite
}

func TestApperrSuite(t *testing.T) {
	suite.Run(t, new(ApperrTestSuite))
}

func (s *ApperrTestSuite) TestKindSurvivesWrapping() {
	cause := errors.New("connection reset")
	err := errors.Wrap(Transient("get candles", cause), "tick")

	s.Equal(KindTransient, KindOf(err))
	s.True(errors.Is(err, cause))
}

func (s *ApperrTestSuite) TestUntaggedIsTransient() {
	s.Equal(KindTransient, KindOf(context.DeadlineExceeded))
	s.False(Is(nil, KindTransient))
}

func (s *ApperrTestSuite) TestErrorString() {
	err := Order("cancel order", errors.New("51400"))
	s.Equal("order: cancel order: 51400", err.Error())

	err = Dataf("ma cross", "need %d bars, have %d", 63, 10)
	s.True(Is(err, KindData))
	s.Contains(err.Error(), "need 63 bars")
}

func (s *ApperrTestSuite) TestOutermostKindWins() {
	inner := Transient("read", errors.New("eof"))
	outer := Fatal("control source", inner)
	s.Equal(KindFatal, KindOf(outer))
}
