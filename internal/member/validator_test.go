package member

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/validate"
)

type fakeHeadFinder struct {
	heads map[string][]*HouseholdMember
	err   error
}

func (f *fakeHeadFinder) FindByCombination(_ context.Context, tenantID string, keys []string) ([]*HouseholdMember, error) {
	if f.err != nil {
		return nil, f.err
	}
	requested := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		requested[k] = struct{}{}
	}
	var out []*HouseholdMember
	for _, h := range f.heads[tenantID] {
		for _, ref := range h.householdRefs() {
			if _, ok := requested[ref]; ok {
				out = append(out, h)
				break
			}
		}
	}
	return out, nil
}

func head(ref, tenant, householdID, householdRef string) *HouseholdMember {
	return &HouseholdMember{
		Base:                       model.Base{ClientReferenceID: ref, TenantID: tenant},
		HouseholdID:                householdID,
		HouseholdClientReferenceID: householdRef,
		IsHeadOfHousehold:          true,
	}
}

type HeadUniquenessSuite struct {
	suite.Suite
	finder *fakeHeadFinder
	logger *slog.Logger
}

func TestHeadUniquenessSuite(t *testing.T) {
	suite.Run(t, new(HeadUniquenessSuite))
}

func (s *HeadUniquenessSuite) SetupTest() {
	s.finder = &fakeHeadFinder{heads: make(map[string][]*HouseholdMember)}
	s.logger = slog.New(slog.DiscardHandler)
}

func (s *HeadUniquenessSuite) validate(members ...*HouseholdMember) validate.ErrorMap[*HouseholdMember] {
	return NewHeadUniqueness(s.finder, s.logger).Validate(context.Background(),
		&model.BulkRequest[*HouseholdMember]{Entities: members},
		make(validate.ErrorMap[*HouseholdMember]))
}

func (s *HeadUniquenessSuite) TestWithinBatch() {
	s.Run("second head for the same household conflicts", func() {
		first := head("m-1", "ke", "hh-1", "")
		second := head("m-2", "ke", "hh-1", "")
		found := s.validate(first, second)

		s.Empty(found[first])
		s.Equal(errs.CodeDuplicateMapping, found[second][0].Code)
	})

	s.Run("identifier halves of the same household collide", func() {
		byID := head("m-1", "ke", "hh-1", "hh-ref-1")
		byRef := head("m-2", "ke", "", "hh-ref-1")
		found := s.validate(byID, byRef)

		s.Empty(found[byID])
		s.Equal(errs.CodeDuplicateMapping, found[byRef][0].Code)
	})

	s.Run("heads of different households pass", func() {
		a := head("m-1", "ke", "hh-1", "")
		b := head("m-2", "ke", "hh-2", "")
		found := s.validate(a, b)
		s.Empty(found)
	})

	s.Run("non-heads never participate", func() {
		plain := head("m-1", "ke", "hh-1", "")
		plain.IsHeadOfHousehold = false
		other := head("m-2", "ke", "hh-1", "")
		found := s.validate(plain, other)
		s.Empty(found)
	})
}

func (s *HeadUniquenessSuite) TestAgainstStore() {
	stored := head("m-stored", "ke", "hh-1", "hh-ref-1")
	stored.ID = "srv-stored"

	s.Run("stored head blocks a new claimant", func() {
		s.finder.heads["ke"] = []*HouseholdMember{stored}
		claimant := head("m-new", "ke", "", "hh-ref-1")
		found := s.validate(claimant)
		s.Equal(errs.CodeDuplicateMapping, found[claimant][0].Code)
	})

	s.Run("resubmitting the stored head itself is a no-op", func() {
		s.finder.heads["ke"] = []*HouseholdMember{stored}
		resubmit := head("m-stored", "ke", "hh-1", "")
		found := s.validate(resubmit)
		s.Empty(found)
	})

	s.Run("lookup failure marks the tenant group", func() {
		s.finder.err = errors.New("connection reset")
		claimant := head("m-1", "ke", "hh-1", "")
		found := s.validate(claimant)
		s.Equal(errs.CodeNetworkError, found[claimant][0].Code)
	})
}
