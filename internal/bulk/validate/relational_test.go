package validate

//go:generate mockgen -source=relational.go -destination=mocks/mocks.go -package=mocks RefLookup

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/validate/mocks"
)

// linked is a test entity carrying references to a parent kind.
type linked struct {
	model.Base
	Parents []string
}

func newLinked(ref, tenant string, parents ...string) *linked {
	return &linked{
		Base:    model.Base{ClientReferenceID: ref, TenantID: tenant},
		Parents: parents,
	}
}

func parentRefs(l *linked) []string { return l.Parents }

type RelationalSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	lookup *mocks.MockRefLookup
	logger *slog.Logger
}

func TestRelationalSuite(t *testing.T) {
	suite.Run(t, new(RelationalSuite))
}

func (s *RelationalSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.lookup = mocks.NewMockRefLookup(s.ctrl)
	s.logger = slog.New(slog.DiscardHandler)
}

func (s *RelationalSuite) validator() *Relational[*linked] {
	return NewRelational("parent", parentRefs, s.lookup, time.Second, s.logger)
}

func (s *RelationalSuite) TestValidate() {
	s.Run("missing references are flagged, resolved ones pass", func() {
		resolved := newLinked("ref-1", "ke", "p-1")
		dangling := newLinked("ref-2", "ke", "p-404")
		s.lookup.EXPECT().
			ExistingIDs(gomock.Any(), "ke", gomock.Any()).
			Return([]string{"p-1"}, nil)

		found := s.validator().Validate(context.Background(),
			&model.BulkRequest[*linked]{Entities: []*linked{resolved, dangling}},
			make(ErrorMap[*linked]))

		s.Empty(found[resolved])
		s.Equal(errs.CodeNonExistentRelated, found[dangling][0].Code)
	})

	s.Run("entities without references are skipped entirely", func() {
		bare := newLinked("ref-1", "ke")
		found := s.validator().Validate(context.Background(),
			&model.BulkRequest[*linked]{Entities: []*linked{bare}},
			make(ErrorMap[*linked]))
		s.Empty(found)
	})

	s.Run("one lookup per tenant group", func() {
		ke := newLinked("ref-1", "ke", "p-1")
		mz := newLinked("ref-2", "mz", "p-2")
		s.lookup.EXPECT().
			ExistingIDs(gomock.Any(), "ke", []string{"p-1"}).
			Return([]string{"p-1"}, nil)
		s.lookup.EXPECT().
			ExistingIDs(gomock.Any(), "mz", []string{"p-2"}).
			Return([]string{"p-2"}, nil)

		found := s.validator().Validate(context.Background(),
			&model.BulkRequest[*linked]{Entities: []*linked{ke, mz}},
			make(ErrorMap[*linked]))
		s.Empty(found)
	})

	s.Run("lookup failure marks the tenant group with network error only", func() {
		keA := newLinked("ref-1", "ke", "p-1")
		keB := newLinked("ref-2", "ke", "p-2")
		mz := newLinked("ref-3", "mz", "p-3")
		s.lookup.EXPECT().
			ExistingIDs(gomock.Any(), "ke", gomock.Any()).
			Return(nil, errors.New("dial tcp: connection refused"))
		s.lookup.EXPECT().
			ExistingIDs(gomock.Any(), "mz", gomock.Any()).
			Return([]string{"p-3"}, nil)

		found := s.validator().Validate(context.Background(),
			&model.BulkRequest[*linked]{Entities: []*linked{keA, keB, mz}},
			make(ErrorMap[*linked]))

		s.Equal(errs.CodeNetworkError, found[keA][0].Code)
		s.Equal(errs.CodeNetworkError, found[keB][0].Code)
		s.Empty(found[mz])
	})

	s.Run("entities already carrying errors are not re-checked", func() {
		bad := newLinked("ref-1", "ke", "p-1")
		acc := make(ErrorMap[*linked])
		acc.Add(bad, errs.ForNullID())

		found := s.validator().Validate(context.Background(),
			&model.BulkRequest[*linked]{Entities: []*linked{bad}}, acc)
		s.Empty(found)
	})
}
