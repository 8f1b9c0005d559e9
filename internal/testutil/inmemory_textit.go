package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/httpclient"
)

// FakeTextItBaseURL is the base URL the fake builds pagination links with
const FakeTextItBaseURL = "https://api.textit.in/api/v2/"

// RecordedRequest is a request seen by InMemoryTextIt
type RecordedRequest struct {
	Method   string
	Resource string
	Query    url.Values
	Body     []byte
	Auth     string
}

type onceFailure struct {
	status int
	commit bool
}

type fakeGroup struct {
	UUID    string
	Name    string
	Members []string
}

// InMemoryTextIt implements httpclient.Client by emulating the TextIt
// contacts, groups and contact_actions endpoints in memory.
type InMemoryTextIt struct {
	mu sync.Mutex

	PageSize int
	Token    string

	contacts []map[string]interface{}
	groups   map[string]*fakeGroup
	order    []string
	requests []RecordedRequest

	createFailures map[string]int
	createOnce     map[string]onceFailure
	addFailures    map[string]int
	createDelays   map[string]time.Duration
	addDelays      map[string]time.Duration
}

// NewInMemoryTextIt creates an empty fake accepting the given API token
func NewInMemoryTextIt(token string) *InMemoryTextIt {
	return &InMemoryTextIt{
		PageSize:       50,
		Token:          token,
		groups:         make(map[string]*fakeGroup),
		createFailures: make(map[string]int),
		createOnce:     make(map[string]onceFailure),
		addFailures:    make(map[string]int),
		createDelays:   make(map[string]time.Duration),
		addDelays:      make(map[string]time.Duration),
	}
}

// AddGroup seeds a group with the given members and returns its UUID
func (f *InMemoryTextIt) AddGroup(name string, members ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addGroupLocked(name, members)
}

// AddContact seeds a contact, optionally as a member of the given groups
func (f *InMemoryTextIt) AddContact(contactID, name string, groupIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	refs := make([]map[string]string, 0, len(groupIDs))
	for _, gid := range groupIDs {
		if g, ok := f.groups[gid]; ok {
			g.Members = append(g.Members, contactID)
			refs = append(refs, map[string]string{"uuid": g.UUID, "name": g.Name})
		}
	}
	f.contacts = append(f.contacts, map[string]interface{}{
		"uuid":   contactID,
		"name":   name,
		"urns":   []string{"tel:+1555" + contactID},
		"groups": refs,
	})
}

// FailCreateGroup makes creating any group whose name ends with name fail
// with status
func (f *InMemoryTextIt) FailCreateGroup(name string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFailures[name] = status
}

// FailCreateGroupOnce makes the next create of the group named name fail
// with status. With commit the group is created anyway, as when a response
// is lost after the server handled the request.
func (f *InMemoryTextIt) FailCreateGroupOnce(name string, status int, commit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createOnce[name] = onceFailure{status: status, commit: commit}
}

// FailAddContacts makes adding contacts to the group named name fail with status
func (f *InMemoryTextIt) FailAddContacts(name string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addFailures[name] = status
}

// DelayCreateGroup delays the creation of the group named name
func (f *InMemoryTextIt) DelayCreateGroup(name string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createDelays[name] = d
}

// DelayAddContacts delays adding contacts to the group named name
func (f *InMemoryTextIt) DelayAddContacts(name string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addDelays[name] = d
}

// Group returns the UUID and members of the group named name
func (f *InMemoryTextIt) Group(name string) (string, []string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.Name == name {
			return g.UUID, append([]string(nil), g.Members...), true
		}
	}
	return "", nil, false
}

// GroupNames returns the names of all groups in creation order
func (f *InMemoryTextIt) GroupNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.order))
	for _, id := range f.order {
		if g, ok := f.groups[id]; ok {
			names = append(names, g.Name)
		}
	}
	return names
}

// Requests returns a copy of all requests received so far
func (f *InMemoryTextIt) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// CountRequests counts requests matching method and resource
func (f *InMemoryTextIt) CountRequests(method, resource string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Resource == resource {
			n++
		}
	}
	return n
}

// Send implements the httpclient.Client interface. Like the real transport
// it refuses to send once ctx is done.
func (f *InMemoryTextIt) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Messaging API is unreachable").
			Mark(ierr.ErrHTTPClient)
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	resource := strings.TrimSuffix(u.Path[strings.LastIndex(u.Path, "/")+1:], ".json")
	query := u.Query()

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method:   req.Method,
		Resource: resource,
		Query:    query,
		Body:     req.Body,
		Auth:     req.Headers["Authorization"],
	})
	authorized := req.Headers["Authorization"] == "Token "+f.Token
	f.mu.Unlock()

	if !authorized {
		return fail(http.StatusForbidden, `{"detail":"Invalid token."}`)
	}

	switch {
	case resource == "contacts" && req.Method == http.MethodGet:
		return f.listContacts(query)
	case resource == "groups" && req.Method == http.MethodGet:
		return f.listGroups(query)
	case resource == "groups" && req.Method == http.MethodPost:
		return f.createGroup(ctx, req.Body)
	case resource == "groups" && req.Method == http.MethodDelete:
		return f.deleteGroup(query)
	case resource == "contact_actions" && req.Method == http.MethodPost:
		return f.contactAction(ctx, req.Body)
	}
	return fail(http.StatusNotFound, `{"detail":"Not found."}`)
}

func (f *InMemoryTextIt) listContacts(query url.Values) (*httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []map[string]interface{}
	for _, c := range f.contacts {
		if id := query.Get("uuid"); id != "" && c["uuid"] != id {
			continue
		}
		if gid := query.Get("group"); gid != "" && !f.isMemberLocked(gid, c["uuid"].(string)) {
			continue
		}
		matched = append(matched, c)
	}

	offset, _ := strconv.Atoi(query.Get("cursor"))
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + f.PageSize
	var next interface{}
	if end < len(matched) {
		q := url.Values{}
		q.Set("group", query.Get("group"))
		q.Set("cursor", strconv.Itoa(end))
		next = FakeTextItBaseURL + "contacts.json?" + q.Encode()
	} else {
		end = len(matched)
	}

	page := matched[offset:end]
	if page == nil {
		page = []map[string]interface{}{}
	}
	return ok(http.StatusOK, map[string]interface{}{
		"next":     next,
		"previous": nil,
		"results":  page,
	})
}

func (f *InMemoryTextIt) listGroups(query url.Values) (*httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	results := []map[string]interface{}{}
	for _, id := range f.order {
		g, found := f.groups[id]
		if !found {
			continue
		}
		if v := query.Get("uuid"); v != "" && g.UUID != v {
			continue
		}
		if v := query.Get("name"); v != "" && g.Name != v {
			continue
		}
		results = append(results, groupJSON(g))
	}
	return ok(http.StatusOK, map[string]interface{}{"next": nil, "results": results})
}

func (f *InMemoryTextIt) createGroup(ctx context.Context, body []byte) (*httpclient.Response, error) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Name == "" {
		return fail(http.StatusBadRequest, `{"name":["This field is required."]}`)
	}

	f.mu.Lock()
	delay := f.createDelays[req.Name]
	status, failing := 0, false
	for suffix, st := range f.createFailures {
		if strings.HasSuffix(req.Name, suffix) {
			status, failing = st, true
		}
	}
	once, failOnce := f.createOnce[req.Name]
	delete(f.createOnce, req.Name)
	f.mu.Unlock()

	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}
	if failing {
		return fail(status, `{"detail":"Server Error"}`)
	}
	if failOnce && !once.commit {
		return fail(once.status, `{"detail":"Server Error"}`)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.Name == req.Name {
			return fail(http.StatusBadRequest, `{"name":["Name is used by another group"]}`)
		}
	}
	id := f.addGroupLocked(req.Name, nil)
	if failOnce {
		return fail(once.status, `{"detail":"Server Error"}`)
	}
	return ok(http.StatusCreated, groupJSON(f.groups[id]))
}

func (f *InMemoryTextIt) deleteGroup(query url.Values) (*httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := query.Get("uuid")
	if _, found := f.groups[id]; !found {
		return fail(http.StatusNotFound, `{"detail":"Not found."}`)
	}
	delete(f.groups, id)
	return &httpclient.Response{StatusCode: http.StatusNoContent, Headers: map[string]string{}}, nil
}

func (f *InMemoryTextIt) contactAction(ctx context.Context, body []byte) (*httpclient.Response, error) {
	var req struct {
		Action   string   `json:"action"`
		Contacts []string `json:"contacts"`
		Group    string   `json:"group"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Action != "add" {
		return fail(http.StatusBadRequest, `{"action":["Not a valid action."]}`)
	}

	f.mu.Lock()
	g, found := f.groups[req.Group]
	var delay time.Duration
	status, failing := 0, false
	if found {
		delay = f.addDelays[g.Name]
		status, failing = f.addFailures[g.Name]
	}
	f.mu.Unlock()

	if !found {
		return fail(http.StatusBadRequest, `{"group":["No such object."]}`)
	}
	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}
	if failing {
		return fail(status, `{"detail":"Server Error"}`)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	g.Members = append(g.Members, req.Contacts...)
	return &httpclient.Response{StatusCode: http.StatusNoContent, Headers: map[string]string{}}, nil
}

func (f *InMemoryTextIt) addGroupLocked(name string, members []string) string {
	id := uuid.New().String()
	f.groups[id] = &fakeGroup{UUID: id, Name: name, Members: append([]string(nil), members...)}
	f.order = append(f.order, id)
	return id
}

func (f *InMemoryTextIt) isMemberLocked(groupID, contactID string) bool {
	g, found := f.groups[groupID]
	if !found {
		return false
	}
	for _, m := range g.Members {
		if m == contactID {
			return true
		}
	}
	return false
}

func groupJSON(g *fakeGroup) map[string]interface{} {
	return map[string]interface{}{
		"uuid":   g.UUID,
		"name":   g.Name,
		"query":  nil,
		"status": "ready",
		"count":  len(g.Members),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ok(status int, v interface{}) (*httpclient.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("fake textit: %w", err)
	}
	return &httpclient.Response{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}, nil
}

// fail mirrors httpclient.DefaultClient, which turns non-2xx into errors
func fail(status int, body string) (*httpclient.Response, error) {
	return nil, httpclient.NewError(status, []byte(body))
}
