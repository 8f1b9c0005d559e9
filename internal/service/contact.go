package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/smsbatch/smsbatch/internal/api/dto"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
)

type ContactService interface {
	ListContacts(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error)
	GetContact(ctx context.Context, id string) (*dto.ContactResponse, error)
}

type contactService struct {
	ServiceParams
}

func NewContactService(params ServiceParams) ContactService {
	return &contactService{
		ServiceParams: params,
	}
}

// ListContacts returns one page of a group's contacts. The all subscribers
// group is listed when no group is given.
func (s *contactService) ListContacts(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error) {
	groupID := lo.Ternary(req.Group != "", req.Group, s.Config.TextIt.AllSubscribersGroup)

	page, err := s.TextIt.ListContactsByGroup(ctx, groupID, req.Cursor)
	if err != nil {
		return nil, err
	}

	results := lo.Map(page.Results, func(c textit.Contact, _ int) *dto.ContactResponse {
		return dto.NewContactResponse(&c, s.TextIt.URLForContact(c.UUID))
	})

	return &dto.ListContactsResponse{
		Results:    results,
		NextCursor: page.Cursor(),
		GroupUUID:  groupID,
	}, nil
}

func (s *contactService) GetContact(ctx context.Context, id string) (*dto.ContactResponse, error) {
	contact, err := s.TextIt.GetContactByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewContactResponse(contact, s.TextIt.URLForContact(contact.UUID)), nil
}
