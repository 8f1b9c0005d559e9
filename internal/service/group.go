package service

import (
	"context"

	"github.com/smsbatch/smsbatch/internal/api/dto"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
)

type GroupService interface {
	GetGroup(ctx context.Context, id string) (*dto.GroupResponse, error)
	GetGroupByName(ctx context.Context, name string) (*dto.GroupResponse, error)
	DeleteGroup(ctx context.Context, id string) error
}

type groupService struct {
	ServiceParams
}

func NewGroupService(params ServiceParams) GroupService {
	return &groupService{
		ServiceParams: params,
	}
}

func (s *groupService) GetGroup(ctx context.Context, id string) (*dto.GroupResponse, error) {
	g, err := s.TextIt.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewGroupResponse(g, s.TextIt.URLForGroup(g.UUID)), nil
}

func (s *groupService) GetGroupByName(ctx context.Context, name string) (*dto.GroupResponse, error) {
	if name == "" {
		return nil, ierr.NewError("group name is required").
			WithHint("Please provide a group name").
			Mark(ierr.ErrValidation)
	}

	g, err := s.TextIt.GetGroupByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return dto.NewGroupResponse(g, s.TextIt.URLForGroup(g.UUID)), nil
}

// DeleteGroup removes a group. The all subscribers group cannot be deleted.
func (s *groupService) DeleteGroup(ctx context.Context, id string) error {
	if id == s.Config.TextIt.AllSubscribersGroup {
		return ierr.NewError("cannot delete the all subscribers group").
			WithHint("The all subscribers group cannot be deleted").
			Mark(ierr.ErrValidation)
	}

	if err := s.TextIt.DeleteGroupByID(ctx, id); err != nil {
		return err
	}
	s.Logger.Infow("deleted group", "group_uuid", id)
	return nil
}
