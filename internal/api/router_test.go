package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smsbatch/smsbatch/internal/api/dto"
	v1 "github.com/smsbatch/smsbatch/internal/api/v1"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
	"github.com/smsbatch/smsbatch/internal/service"
	"github.com/smsbatch/smsbatch/internal/testutil"
	"github.com/smsbatch/smsbatch/internal/types"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
	allID  string
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	gin.SetMode(gin.TestMode)

	fake := s.GetTextIt()
	s.allID = fake.AddGroup("All Subscribers")
	for i := 0; i < 5; i++ {
		fake.AddContact(fmt.Sprintf("c%d", i), fmt.Sprintf("Contact %d", i), s.allID)
	}

	cfg := s.GetConfig()
	cfg.TextIt.AllSubscribersGroup = s.allID
	cfg.Deployment.Mode = types.ModeAPI

	client, err := textit.NewClient(cfg, fake, s.GetLogger())
	s.Require().NoError(err)
	params := service.NewServiceParams(s.GetLogger(), cfg, client, s.GetMetrics(), s.GetSentry())

	s.router = NewRouter(Handlers{
		Health:  v1.NewHealthHandler(s.GetLogger()),
		Contact: v1.NewContactHandler(service.NewContactService(params), s.GetLogger()),
		Group:   v1.NewGroupHandler(service.NewGroupService(params), s.GetLogger()),
		SubscriberGroup: v1.NewSubscriberGroupHandler(
			service.NewSubscriberService(params, service.NewGroupProvisioner(params)),
			s.GetLogger(),
		),
	}, cfg, s.GetLogger(), s.GetSentry(), s.GetMetrics())
}

func (s *RouterSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decodeError(w *httptest.ResponseRecorder) ierr.ErrorResponse {
	var resp ierr.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestMetrics() {
	s.do(http.MethodGet, "/api/v1/contacts", nil)

	w := s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "go_goroutines")
}

func (s *RouterSuite) TestListContacts() {
	w := s.do(http.MethodGet, "/api/v1/contacts", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp dto.ListContactsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Results, 5)
	s.Equal(s.allID, resp.GroupUUID)
	s.Empty(resp.NextCursor)
}

func (s *RouterSuite) TestGetContactNotFound() {
	w := s.do(http.MethodGet, "/api/v1/contacts/nobody", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Contact nobody does not exist", s.decodeError(w).Message)
}

func (s *RouterSuite) TestGroupLifecycle() {
	id := s.GetTextIt().AddGroup("Batch #1", "c1")

	w := s.do(http.MethodGet, "/api/v1/groups/"+id, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var g dto.GroupResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &g))
	s.Equal(1, g.Count)

	w = s.do(http.MethodGet, "/api/v1/groups?name=Batch%20%231", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/groups/"+id, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/groups/"+id, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestCreateSubscriberGroups() {
	w := s.do(http.MethodPost, "/api/v1/subscriber-groups", dto.CreateSubscriberGroupsRequest{
		Subscribers: []string{"c0", "c1", "c2"},
		BatchSize:   2,
		NamePrefix:  "Promo",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.SubscriberGroupsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(3, resp.NumberOfSubscribers)
	s.Equal(2, resp.NumberOfGroups)
	s.Require().Len(resp.Groups, 2)
	s.True(strings.HasPrefix(resp.Groups[0].Name, "Promo "))
	s.True(strings.HasSuffix(resp.Groups[1].Name, " #2"))
	s.Equal(1, resp.Groups[1].Count)
}

func (s *RouterSuite) TestCreateSubscriberGroupsFromAllSubscribers() {
	w := s.do(http.MethodPost, "/api/v1/subscriber-groups", map[string]interface{}{
		"all_subscribers": true,
		"batch_size":      2,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.SubscriberGroupsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(5, resp.NumberOfSubscribers)
	s.Equal(3, resp.NumberOfGroups)
}

func (s *RouterSuite) TestCreateSubscriberGroupsValidation() {
	w := s.do(http.MethodPost, "/api/v1/subscriber-groups", map[string]interface{}{
		"subscribers": []string{"c1", "c1"},
	})
	s.Equal(http.StatusBadRequest, w.Code)
	resp := s.decodeError(w)
	s.Equal("Each subscriber may only be listed once", resp.Message)
	s.Equal([]interface{}{"c1"}, resp.Details["duplicates"])

	w = s.do(http.MethodPost, "/api/v1/subscriber-groups", map[string]interface{}{
		"subscribers": "not a list",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Empty(s.GetTextIt().Requests())
}

func (s *RouterSuite) TestCreateSubscriberGroupsPartialFailure() {
	s.GetTextIt().FailCreateGroup(" #2", http.StatusInternalServerError)

	w := s.do(http.MethodPost, "/api/v1/subscriber-groups", dto.CreateSubscriberGroupsRequest{
		Subscribers: []string{"c0", "c1", "c2", "c3"},
		BatchSize:   2,
	})
	s.Require().Equal(http.StatusMultiStatus, w.Code, w.Body.String())

	var resp dto.SubscriberGroupsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(2, resp.NumberOfGroups)
	s.Len(resp.Groups, 1)
	s.Require().Len(resp.FailedBatches, 1)
	s.Equal(1, resp.FailedBatches[0].Index)
}

func (s *RouterSuite) TestUpstreamStatusIsForwarded() {
	s.GetTextIt().Token = "rotated"

	w := s.do(http.MethodGet, "/api/v1/contacts", nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("Invalid token.", s.decodeError(w).Message)
}
