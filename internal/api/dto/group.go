package dto

import (
	"github.com/smsbatch/smsbatch/internal/integration/textit"
)

// GroupResponse represents a remote group
type GroupResponse struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Count int    `json:"count"`
	URL   string `json:"url"`
}

// NewGroupResponse creates a group response linking to the TextIt web UI
func NewGroupResponse(g *textit.Group, url string) *GroupResponse {
	return &GroupResponse{
		UUID:  g.UUID,
		Name:  g.Name,
		Count: g.Count,
		URL:   url,
	}
}
