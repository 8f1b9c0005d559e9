package textit

import (
	"net/url"
	"time"
)

// GroupRef is the short group reference embedded in contacts
type GroupRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Contact represents a TextIt contact
type Contact struct {
	UUID       string                 `json:"uuid"`
	Name       string                 `json:"name"`
	Language   string                 `json:"language,omitempty"`
	URNs       []string               `json:"urns"`
	Groups     []GroupRef             `json:"groups"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Blocked    bool                   `json:"blocked"`
	Stopped    bool                   `json:"stopped"`
	CreatedOn  time.Time              `json:"created_on"`
	ModifiedOn time.Time              `json:"modified_on"`
}

// Group represents a TextIt contact group
type Group struct {
	UUID   string  `json:"uuid"`
	Name   string  `json:"name"`
	Query  *string `json:"query"`
	Status string  `json:"status,omitempty"`
	Count  int     `json:"count"`
}

// ContactPage is one page of the contacts list endpoint
type ContactPage struct {
	Next     string    `json:"next"`
	Previous string    `json:"previous"`
	Results  []Contact `json:"results"`
}

// Cursor returns the cursor of the next page, or "" on the last page
func (p *ContactPage) Cursor() string {
	return cursorFromURL(p.Next)
}

type groupList struct {
	Next    string  `json:"next"`
	Results []Group `json:"results"`
}

type contactList struct {
	Results []Contact `json:"results"`
}

// CreateGroupRequest is the body of POST groups.json
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// ContactActionRequest is the body of POST contact_actions.json
type ContactActionRequest struct {
	Action   ContactAction `json:"action"`
	Contacts []string      `json:"contacts"`
	Group    string        `json:"group,omitempty"`
}

// errorBody covers both {"detail": "..."} and field error maps
type errorBody struct {
	Detail string `json:"detail"`
}

func cursorFromURL(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get(QueryCursor)
}
