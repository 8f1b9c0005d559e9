package textit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/smsbatch/smsbatch/internal/cache"
	"github.com/smsbatch/smsbatch/internal/config"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/httpclient"
	"github.com/smsbatch/smsbatch/internal/logger"
)

// Client defines the operations used against the TextIt contacts API
type Client interface {
	// Contact operations
	ListContactsByGroup(ctx context.Context, groupID, cursor string) (*ContactPage, error)
	GetContactByID(ctx context.Context, contactID string) (*Contact, error)

	// Group operations
	GetGroupByID(ctx context.Context, groupID string) (*Group, error)
	GetGroupByName(ctx context.Context, name string) (*Group, error)
	GetAllSubscribersGroup(ctx context.Context) (*Group, error)
	CreateGroup(ctx context.Context, name string) (*Group, error)
	DeleteGroupByID(ctx context.Context, groupID string) error
	AddContactsToGroup(ctx context.Context, contactIDs []string, groupID string) error

	// Raw access and web links
	GetByURL(ctx context.Context, rawURL string) ([]byte, error)
	URLForContact(contactID string) string
	URLForGroup(groupID string) string
}

type client struct {
	cfg        config.TextItConfig
	baseURL    *url.URL
	httpClient httpclient.Client
	logger     *logger.Logger
	groups     cache.Cache
}

// NewClient creates a TextIt client sharing the given HTTP client
func NewClient(cfg *config.Configuration, httpClient httpclient.Client, logger *logger.Logger) (Client, error) {
	base, err := url.Parse(ensureTrailingSlash(cfg.TextIt.BaseURL))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid TextIt base URL").
			Mark(ierr.ErrValidation)
	}

	c := &client{
		cfg:        cfg.TextIt,
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger,
		groups:     cache.NewInMemoryCache(cfg.TextIt.CacheTTL),
	}
	return c, nil
}

// ListContactsByGroup fetches one page of a group's contacts. An empty
// cursor requests the first page.
func (c *client) ListContactsByGroup(ctx context.Context, groupID, cursor string) (*ContactPage, error) {
	body, err := c.get(ctx, ResourceContacts, map[string]string{
		QueryGroup:  groupID,
		QueryCursor: cursor,
	})
	if err != nil {
		return nil, err
	}

	var page ContactPage
	if err := decode(body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetContactByID fetches a single contact
func (c *client) GetContactByID(ctx context.Context, contactID string) (*Contact, error) {
	body, err := c.get(ctx, ResourceContacts, map[string]string{QueryUUID: contactID})
	if err != nil {
		return nil, err
	}

	var list contactList
	if err := decode(body, &list); err != nil {
		return nil, err
	}
	if len(list.Results) == 0 {
		return nil, ierr.NewError("contact not found").
			WithHintf("Contact %s does not exist", contactID).
			Mark(ierr.ErrNotFound)
	}
	return &list.Results[0], nil
}

// GetGroupByID fetches a group by UUID
func (c *client) GetGroupByID(ctx context.Context, groupID string) (*Group, error) {
	return c.findGroup(ctx, QueryUUID, groupID)
}

// GetGroupByName fetches a group by its exact name
func (c *client) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	return c.findGroup(ctx, QueryName, name)
}

// GetAllSubscribersGroup fetches the group every subscriber belongs to
func (c *client) GetAllSubscribersGroup(ctx context.Context) (*Group, error) {
	return c.GetGroupByID(ctx, c.cfg.AllSubscribersGroup)
}

func (c *client) findGroup(ctx context.Context, field, value string) (*Group, error) {
	if g, ok := c.cachedGroup(ctx, field, value); ok {
		return g, nil
	}

	body, err := c.get(ctx, ResourceGroups, map[string]string{field: value})
	if err != nil {
		return nil, err
	}

	var list groupList
	if err := decode(body, &list); err != nil {
		return nil, err
	}
	if len(list.Results) == 0 {
		return nil, ierr.NewError("group not found").
			WithHintf("Group %s does not exist", value).
			Mark(ierr.ErrNotFound)
	}

	group := list.Results[0]
	c.cacheGroup(ctx, &group)
	return &group, nil
}

// CreateGroup creates a new, empty group
func (c *client) CreateGroup(ctx context.Context, name string) (*Group, error) {
	body, err := c.post(ctx, ResourceGroups, CreateGroupRequest{Name: name}, "name", name)
	if err != nil {
		return nil, err
	}

	var group Group
	if err := decode(body, &group); err != nil {
		return nil, err
	}
	c.cacheGroup(ctx, &group)
	return &group, nil
}

// DeleteGroupByID removes a group. Its contacts are left untouched.
func (c *client) DeleteGroupByID(ctx context.Context, groupID string) error {
	c.logger.Debugw("textit DELETE", "path", ResourceGroups, "query", map[string]string{QueryUUID: groupID})

	_, err := c.send(ctx, http.MethodDelete, c.resourceURL(ResourceGroups, map[string]string{QueryUUID: groupID}), nil)
	if err != nil {
		return err
	}
	c.evictGroup(ctx, groupID)
	return nil
}

// AddContactsToGroup adds contacts to a group. The API gives no idempotency
// guarantee for repeated calls.
func (c *client) AddContactsToGroup(ctx context.Context, contactIDs []string, groupID string) error {
	req := ContactActionRequest{
		Action:   ContactActionAdd,
		Contacts: contactIDs,
		Group:    groupID,
	}
	_, err := c.post(ctx, ResourceContactActions, req,
		"action", req.Action,
		"group", groupID,
		"contacts", len(contactIDs))
	if err != nil {
		return err
	}
	// cached member counts are stale now
	c.evictGroup(ctx, groupID)
	return nil
}

// GetByURL performs an authenticated GET on an absolute API URL, such as the
// next link of a list response. URLs outside the API host are rejected so the
// token is never sent elsewhere.
func (c *client) GetByURL(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != c.baseURL.Host || u.Scheme != c.baseURL.Scheme {
		return nil, ierr.NewError("url is not on the TextIt API host").
			WithHintf("Refusing to fetch %s", rawURL).
			Mark(ierr.ErrValidation)
	}

	c.logger.Debugw("textit GET", "url", rawURL)
	resp, err := c.send(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// URLForContact returns the TextIt web page of a contact
func (c *client) URLForContact(contactID string) string {
	return ensureTrailingSlash(c.cfg.WebURL) + webContactPath + contactID
}

// URLForGroup returns the TextIt web page listing a group's contacts
func (c *client) URLForGroup(groupID string) string {
	return ensureTrailingSlash(c.cfg.WebURL) + webGroupPath + groupID
}

func (c *client) get(ctx context.Context, resource string, query map[string]string) ([]byte, error) {
	c.logger.Debugw("textit GET", "path", resource, "query", query)

	resp, err := c.send(ctx, http.MethodGet, c.resourceURL(resource, query), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// post sends body as JSON. shape is logged instead of the body so large
// member lists stay out of the logs.
func (c *client) post(ctx context.Context, resource string, body interface{}, shape ...interface{}) ([]byte, error) {
	c.logger.Debugw("textit POST", append([]interface{}{"path", resource}, shape...)...)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode the TextIt request").
			Mark(ierr.ErrSystem)
	}

	resp, err := c.send(ctx, http.MethodPost, c.resourceURL(resource, nil), payload)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *client) send(ctx context.Context, method, rawURL string, body []byte) (*httpclient.Response, error) {
	resp, err := c.httpClient.Send(ctx, &httpclient.Request{
		Method: method,
		URL:    rawURL,
		Headers: map[string]string{
			"Authorization": "Token " + c.cfg.APIToken,
			"Accept":        "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, c.upstreamError(method, rawURL, err)
	}
	return resp, nil
}

// upstreamError keeps the *httpclient.Error in the chain so callers can
// recover the upstream status, and turns the upstream message into a hint.
func (c *client) upstreamError(method, rawURL string, err error) error {
	httpErr, ok := httpclient.IsHTTPError(err)
	if !ok {
		return err
	}

	message := upstreamMessage(httpErr.Response)
	c.logger.Errorw("textit api error",
		"method", method,
		"path", pathOnly(rawURL),
		"status", httpErr.StatusCode,
		"message", message)

	if httpErr.StatusCode == http.StatusNotFound {
		return ierr.WithError(err).
			WithHint(message).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHint(message).
		WithReportableDetails(map[string]any{"upstream_status": httpErr.StatusCode}).
		Mark(ierr.ErrHTTPClient)
}

func (c *client) resourceURL(resource string, query map[string]string) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: resource + ".json"})

	values := url.Values{}
	for k, v := range query {
		if v != "" {
			values.Set(k, v)
		}
	}
	u.RawQuery = values.Encode()
	return u.String()
}

func (c *client) cachedGroup(ctx context.Context, field, value string) (*Group, bool) {
	v, ok := c.groups.Get(ctx, cache.GenerateKey(cache.PrefixGroup, field, value))
	if !ok {
		return nil, false
	}
	g := v.(Group)
	return &g, true
}

func (c *client) cacheGroup(ctx context.Context, g *Group) {
	if g.UUID == "" {
		return
	}
	c.groups.Set(ctx, cache.GenerateKey(cache.PrefixGroup, QueryUUID, g.UUID), *g, 0)
	if g.Name != "" {
		c.groups.Set(ctx, cache.GenerateKey(cache.PrefixGroup, QueryName, g.Name), *g, 0)
	}
}

func (c *client) evictGroup(ctx context.Context, groupID string) {
	if g, ok := c.cachedGroup(ctx, QueryUUID, groupID); ok {
		c.groups.Delete(ctx, cache.GenerateKey(cache.PrefixGroup, QueryName, g.Name))
	}
	c.groups.Delete(ctx, cache.GenerateKey(cache.PrefixGroup, QueryUUID, groupID))
}

func decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed response from TextIt").
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

// upstreamMessage extracts a readable message from a TextIt error body,
// which is either {"detail": "..."} or a map of field names to messages.
func upstreamMessage(body []byte) string {
	var detail errorBody
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}

	var fields map[string][]string
	if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
		parts := lo.MapToSlice(fields, func(field string, msgs []string) string {
			return fmt.Sprintf("%s: %s", field, strings.Join(msgs, " "))
		})
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}

	if len(body) > 0 && len(body) <= 256 {
		return string(body)
	}
	return "TextIt request failed"
}

func pathOnly(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
