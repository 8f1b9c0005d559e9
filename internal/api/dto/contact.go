package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
)

// ContactResponse represents a contact as returned by the API
type ContactResponse struct {
	UUID       string            `json:"uuid"`
	Name       string            `json:"name"`
	URNs       []string          `json:"urns"`
	Groups     []textit.GroupRef `json:"groups"`
	Blocked    bool              `json:"blocked"`
	Stopped    bool              `json:"stopped"`
	CreatedOn  time.Time         `json:"created_on"`
	ModifiedOn time.Time         `json:"modified_on"`
	URL        string            `json:"url"`
}

// NewContactResponse creates a contact response linking to the TextIt web UI
func NewContactResponse(c *textit.Contact, url string) *ContactResponse {
	return &ContactResponse{
		UUID:       c.UUID,
		Name:       c.Name,
		URNs:       lo.Ternary(c.URNs == nil, []string{}, c.URNs),
		Groups:     lo.Ternary(c.Groups == nil, []textit.GroupRef{}, c.Groups),
		Blocked:    c.Blocked,
		Stopped:    c.Stopped,
		CreatedOn:  c.CreatedOn,
		ModifiedOn: c.ModifiedOn,
		URL:        url,
	}
}

// ListContactsRequest holds the query parameters of GET /contacts
type ListContactsRequest struct {
	// Group defaults to the all subscribers group
	Group  string `form:"group"`
	Cursor string `form:"cursor"`
}

// ListContactsResponse is one page of contacts
type ListContactsResponse struct {
	Results    []*ContactResponse `json:"results"`
	NextCursor string             `json:"next_cursor,omitempty"`
	GroupUUID  string             `json:"group_uuid"`
}
