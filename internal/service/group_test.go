package service

import (
	"testing"

	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
	"github.com/smsbatch/smsbatch/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type GroupServiceSuite struct {
	testutil.BaseServiceTestSuite
	service GroupService
}

func TestGroupService(t *testing.T) {
	suite.Run(t, new(GroupServiceSuite))
}

func (s *GroupServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	client, err := textit.NewClient(s.GetConfig(), s.GetTextIt(), s.GetLogger())
	s.Require().NoError(err)
	s.service = NewGroupService(NewServiceParams(s.GetLogger(), s.GetConfig(), client, s.GetMetrics(), s.GetSentry()))
}

func (s *GroupServiceSuite) TestGetGroup() {
	id := s.GetTextIt().AddGroup("Batch #1", "c1", "c2")

	g, err := s.service.GetGroup(s.GetContext(), id)
	s.Require().NoError(err)
	s.Equal("Batch #1", g.Name)
	s.Equal(2, g.Count)
	s.Equal("https://textit.in/contact/filter/"+id, g.URL)

	byName, err := s.service.GetGroupByName(s.GetContext(), "Batch #1")
	s.Require().NoError(err)
	s.Equal(id, byName.UUID)
}

func (s *GroupServiceSuite) TestGetGroupByNameRequiresName() {
	_, err := s.service.GetGroupByName(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetTextIt().Requests())
}

func (s *GroupServiceSuite) TestDeleteGroup() {
	id := s.GetTextIt().AddGroup("Batch #1")

	s.Require().NoError(s.service.DeleteGroup(s.GetContext(), id))
	_, err := s.service.GetGroup(s.GetContext(), id)
	s.True(ierr.IsNotFound(err))
}

func (s *GroupServiceSuite) TestDeleteAllSubscribersGroupRejected() {
	err := s.service.DeleteGroup(s.GetContext(), testutil.TestAllSubscribersGroup)
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetTextIt().Requests())
}
