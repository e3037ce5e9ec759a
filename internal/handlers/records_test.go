package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/comment"
	"opsdesk/internal/models"
	"opsdesk/internal/onboarding"
	"opsdesk/internal/store"
)

type transitionResponse struct {
	Change models.StatusChange `json:"change"`
	Record models.Lead         `json:"record"`
}

func TestLeads_StatusOnlyMovesThroughWorkflow(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")

	var lead models.Lead
	api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token, gin.H{"name": "Big deal", "value": 1000, "status": "won"}, &lead)
	assert.Equal(t, "new", lead.Status)
	require.NotNil(t, lead.OwnerID)
	assert.Equal(t, admin.User.ID, *lead.OwnerID)

	path := fmt.Sprintf("/leads/%d", lead.ID)
	w := api.do(http.MethodPut, path, admin.Token, gin.H{"name": "Big deal", "status": "won"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var updated models.Lead
	api.expect(http.StatusOK, http.MethodPut, path, admin.Token, gin.H{"name": "Bigger deal", "value": 2500}, &updated)
	assert.Equal(t, "Bigger deal", updated.Name)
	assert.Equal(t, "new", updated.Status)
	assert.Equal(t, lead.CreatedAt.Unix(), updated.CreatedAt.Unix())

	var tr transitionResponse
	api.expect(http.StatusOK, http.MethodPost, path+"/transition", admin.Token, gin.H{"to": "contacted", "note": "called"}, &tr)
	assert.Equal(t, "new", tr.Change.FromStatus)
	assert.Equal(t, "contacted", tr.Record.Status)

	w = api.do(http.MethodPost, path+"/transition", admin.Token, gin.H{"to": "won"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var history []models.StatusChange
	api.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/history/lead/%d", lead.ID), admin.Token, nil, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "contacted", history[0].ToStatus)
	assert.Equal(t, "called", history[0].Note)

	var reach struct {
		From      string   `json:"from"`
		Next      []string `json:"next"`
		Reachable []string `json:"reachable"`
	}
	api.expect(http.StatusOK, http.MethodGet, "/workflows/lead/reachable?from=contacted", admin.Token, nil, &reach)
	assert.Equal(t, []string{"lost", "qualified"}, reach.Next)
	assert.Contains(t, reach.Reachable, "won")
}

func TestLeads_OwnScope(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")
	mia := api.member(admin, "acme", "mia")

	var adminLead, miaLead models.Lead
	api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token, gin.H{"name": "Admin deal"}, &adminLead)
	api.expect(http.StatusCreated, http.MethodPost, "/leads", mia.Token, gin.H{"name": "Mia deal"}, &miaLead)

	var page store.Page[models.Lead]
	api.expect(http.StatusOK, http.MethodGet, "/leads", mia.Token, nil, &page)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, miaLead.ID, page.Items[0].ID)

	api.expect(http.StatusOK, http.MethodGet, "/leads", admin.Token, nil, &page)
	assert.Equal(t, int64(2), page.Total)

	adminPath := fmt.Sprintf("/leads/%d", adminLead.ID)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, adminPath, mia.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, adminPath, mia.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, adminPath+"/transition", mia.Token, gin.H{"to": "contacted"}).Code)

	// handing a lead to someone outside the own scope is refused
	w := api.do(http.MethodPut, fmt.Sprintf("/leads/%d", miaLead.ID), mia.Token, gin.H{"name": "Mia deal", "owner_id": admin.User.ID})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = api.do(http.MethodPost, "/leads", mia.Token, gin.H{"name": "Planted", "owner_id": admin.User.ID})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// member has no role permissions at all
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/roles", mia.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/projects", mia.Token, gin.H{"name": "X", "key": "X"}).Code)
}

func TestLeads_ListPagingAndFilters(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")
	for i, v := range []float64{300, 100, 200} {
		api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token,
			gin.H{"name": fmt.Sprintf("lead %d", i), "value": v, "company": "Initech"}, nil)
	}
	api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token, gin.H{"name": "other", "company": "Hooli"}, nil)

	var page store.Page[models.Lead]
	api.expect(http.StatusOK, http.MethodGet, "/leads?page_size=2", admin.Token, nil, &page)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Items, 2)

	api.expect(http.StatusOK, http.MethodGet, "/leads?company=Initech&sort_by=value&sort_order=desc", admin.Token, nil, &page)
	require.Equal(t, int64(3), page.Total)
	assert.Equal(t, 300.0, page.Items[0].Value)
	assert.Equal(t, 100.0, page.Items[2].Value)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/leads?page_size=abc", admin.Token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/leads?owner_id=me", admin.Token, nil).Code)
}

func TestEntitlements_GateFeaturesAndLimits(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("smallco", "free")

	assert.Equal(t, http.StatusPaymentRequired, api.do(http.MethodGet, "/leads", admin.Token, nil).Code)

	for _, key := range []string{"WEB", "APP"} {
		api.expect(http.StatusCreated, http.MethodPost, "/projects", admin.Token, gin.H{"name": key, "key": key}, nil)
	}
	w := api.do(http.MethodPost, "/projects", admin.Token, gin.H{"name": "Ops", "key": "OPS"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())

	api.expect(http.StatusOK, http.MethodPut, "/entitlements/projects", admin.Token, gin.H{"enabled": true, "limit": 5}, nil)
	api.expect(http.StatusCreated, http.MethodPost, "/projects", admin.Token, gin.H{"name": "Ops", "key": "OPS"}, nil)

	api.expect(http.StatusOK, http.MethodPut, "/entitlements/crm", admin.Token, gin.H{"enabled": true}, nil)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/leads", admin.Token, nil).Code)

	api.expect(http.StatusNoContent, http.MethodDelete, "/entitlements/crm", admin.Token, nil, nil)
	assert.Equal(t, http.StatusPaymentRequired, api.do(http.MethodGet, "/leads", admin.Token, nil).Code)

	api.expect(http.StatusOK, http.MethodPut, "/plan", admin.Token, gin.H{"plan": "pro"}, nil)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/leads", admin.Token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, "/plan", admin.Token, gin.H{"plan": "gold"}).Code)

	var ents struct {
		Plan     string `json:"plan"`
		Features []struct {
			Feature    string `json:"feature"`
			Overridden bool   `json:"overridden"`
		} `json:"features"`
	}
	api.expect(http.StatusOK, http.MethodGet, "/entitlements", admin.Token, nil, &ents)
	assert.Equal(t, "pro", ents.Plan)
	assert.NotEmpty(t, ents.Features)
}

func TestProjects_DuplicateKey(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")

	api.expect(http.StatusCreated, http.MethodPost, "/projects", admin.Token, gin.H{"name": "Web", "key": "WEB"}, nil)
	w := api.do(http.MethodPost, "/projects", admin.Token, gin.H{"name": "Web 2", "key": "WEB"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	w = api.do(http.MethodPost, "/projects", admin.Token, gin.H{"name": "Bad", "key": "no spaces"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSprints_OneActivePerProject(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")

	var project models.Project
	api.expect(http.StatusCreated, http.MethodPost, "/projects", admin.Token, gin.H{"name": "Web", "key": "WEB"}, &project)

	var s1, s2 models.Sprint
	api.expect(http.StatusCreated, http.MethodPost, "/sprints", admin.Token, gin.H{"project_id": project.ID, "name": "S1", "status": "active"}, &s1)
	api.expect(http.StatusCreated, http.MethodPost, "/sprints", admin.Token, gin.H{"project_id": project.ID, "name": "S2"}, &s2)
	assert.Equal(t, models.SprintPlanned, s1.Status)

	w := api.do(http.MethodPost, "/sprints", admin.Token, gin.H{"project_id": 9999, "name": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/sprints/%d/start", s1.ID), admin.Token, nil, nil)
	w = api.do(http.MethodPost, fmt.Sprintf("/sprints/%d/start", s2.ID), admin.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = api.do(http.MethodPut, fmt.Sprintf("/sprints/%d", s2.ID), admin.Token, gin.H{"project_id": project.ID, "name": "S2", "status": "active"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/sprints/%d/complete", s1.ID), admin.Token, nil, nil)
	var started models.Sprint
	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/sprints/%d/start", s2.ID), admin.Token, nil, &started)
	assert.Equal(t, models.SprintActive, started.Status)
	assert.NotNil(t, started.StartDate)

	w = api.do(http.MethodPost, fmt.Sprintf("/sprints/%d/complete", s1.ID), admin.Token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEmployees_Onboarding(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")

	var emp models.Employee
	api.expect(http.StatusCreated, http.MethodPost, "/employees", admin.Token, gin.H{"first_name": "Ada", "last_name": "Lovelace", "status": "active"}, &emp)
	assert.Equal(t, models.EmployeeOnboarding, emp.Status)

	base := fmt.Sprintf("/employees/%d/onboarding", emp.ID)
	var p onboarding.Progress
	api.expect(http.StatusOK, http.MethodGet, base, admin.Token, nil, &p)
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, "Laptop", p.Tasks[0].Title)

	w := api.do(http.MethodPost, base+"/2/complete", admin.Token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, base+"/zero/complete", admin.Token, nil).Code)

	api.expect(http.StatusOK, http.MethodPost, base+"/1/complete", admin.Token, nil, &p)
	assert.Equal(t, models.EmployeeOnboarding, p.EmployeeStatus)
	api.expect(http.StatusOK, http.MethodPost, base+"/2/complete", admin.Token, nil, &p)
	assert.Equal(t, models.EmployeeActive, p.EmployeeStatus)
	assert.Equal(t, 2, p.Completed)

	var history []models.StatusChange
	api.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/history/employee/%d", emp.ID), admin.Token, nil, &history)
	require.Len(t, history, 1)
	assert.Equal(t, models.EmployeeActive, history[0].ToStatus)

	w = api.do(http.MethodPost, "/employees", admin.Token, gin.H{"first_name": "Bob", "last_name": "B", "manager_id": 9999})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComments_Thread(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")

	var lead models.Lead
	api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token, gin.H{"name": "Deal"}, &lead)

	var root, reply models.Comment
	api.expect(http.StatusCreated, http.MethodPost, "/comments", admin.Token,
		gin.H{"entity_type": "lead", "entity_id": lead.ID, "body": "first"}, &root)
	api.expect(http.StatusCreated, http.MethodPost, "/comments", admin.Token,
		gin.H{"entity_type": "lead", "entity_id": lead.ID, "parent_id": root.ID, "body": "reply"}, &reply)
	require.NotNil(t, root.OwnerID)
	assert.Equal(t, admin.User.ID, *root.OwnerID)

	w := api.do(http.MethodPost, "/comments", admin.Token, gin.H{"entity_type": "lead", "entity_id": 9999, "body": "lost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = api.do(http.MethodPost, "/comments", admin.Token, gin.H{"entity_type": "invoice", "entity_id": 1, "body": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	threadPath := fmt.Sprintf("/comments/thread?entity_type=lead&entity_id=%d", lead.ID)
	var thread struct {
		Count    int             `json:"count"`
		Comments []*comment.Node `json:"comments"`
	}
	api.expect(http.StatusOK, http.MethodGet, threadPath, admin.Token, nil, &thread)
	assert.Equal(t, 2, thread.Count)
	require.Len(t, thread.Comments, 1)
	require.Len(t, thread.Comments[0].Replies, 1)
	assert.Equal(t, "reply", thread.Comments[0].Replies[0].Body)

	// editing cannot move a comment to another parent
	var edited models.Comment
	api.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/comments/%d", reply.ID), admin.Token,
		gin.H{"entity_type": "lead", "entity_id": lead.ID, "parent_id": nil, "body": "edited"}, &edited)
	require.NotNil(t, edited.ParentID)
	assert.Equal(t, root.ID, *edited.ParentID)

	api.expect(http.StatusNoContent, http.MethodDelete, fmt.Sprintf("/comments/%d", root.ID), admin.Token, nil, nil)
	api.expect(http.StatusOK, http.MethodGet, threadPath, admin.Token, nil, &thread)
	assert.Equal(t, 1, thread.Count)
	require.Len(t, thread.Comments, 1)
	assert.True(t, thread.Comments[0].Deleted)
	assert.Empty(t, thread.Comments[0].Body)
}

func TestComments_FollowTargetScope(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")
	mia := api.member(admin, "acme", "mia")

	var hidden models.Lead
	api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token, gin.H{"name": "Admin deal"}, &hidden)
	var secret models.Comment
	api.expect(http.StatusCreated, http.MethodPost, "/comments", admin.Token,
		gin.H{"entity_type": "lead", "entity_id": hidden.ID, "body": "discount 40% max"}, &secret)

	threadPath := fmt.Sprintf("/comments/thread?entity_type=lead&entity_id=%d", hidden.ID)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, threadPath, mia.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, fmt.Sprintf("/comments?entity_type=lead&entity_id=%d", hidden.ID), mia.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, fmt.Sprintf("/comments/%d", secret.ID), mia.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, fmt.Sprintf("/history/lead/%d", hidden.ID), mia.Token, nil).Code)
	w := api.do(http.MethodPost, "/comments", mia.Token, gin.H{"entity_type": "lead", "entity_id": hidden.ID, "body": "sneaky"})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/comments", mia.Token, nil).Code)

	// on a lead both can see, only the author may edit or delete a comment
	var shared models.Lead
	api.expect(http.StatusCreated, http.MethodPost, "/leads", mia.Token, gin.H{"name": "Mia deal"}, &shared)
	var byAdmin, byMia models.Comment
	api.expect(http.StatusCreated, http.MethodPost, "/comments", admin.Token,
		gin.H{"entity_type": "lead", "entity_id": shared.ID, "body": "keep the price"}, &byAdmin)
	api.expect(http.StatusCreated, http.MethodPost, "/comments", mia.Token,
		gin.H{"entity_type": "lead", "entity_id": shared.ID, "owner_id": admin.User.ID, "body": "ok"}, &byMia)
	require.NotNil(t, byMia.OwnerID)
	assert.Equal(t, mia.User.ID, *byMia.OwnerID)

	adminPath := fmt.Sprintf("/comments/%d", byAdmin.ID)
	w = api.do(http.MethodPut, adminPath, mia.Token, gin.H{"entity_type": "lead", "entity_id": shared.ID, "body": "rewritten by mia"})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, adminPath, mia.Token, nil).Code)
	api.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/comments/%d", byMia.ID), mia.Token,
		gin.H{"entity_type": "lead", "entity_id": shared.ID, "body": "ok, agreed"}, nil)

	var thread struct {
		Count    int             `json:"count"`
		Comments []*comment.Node `json:"comments"`
	}
	api.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/comments/thread?entity_type=lead&entity_id=%d", shared.ID), mia.Token, nil, &thread)
	assert.Equal(t, 2, thread.Count)
	assert.Equal(t, "keep the price", thread.Comments[0].Body)
	api.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/history/lead/%d", shared.ID), mia.Token, nil, nil)
}

func TestWorkflows_Put(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")

	w := api.do(http.MethodPut, "/workflows/lead", admin.Token, gin.H{
		"initial_status": "new",
		"transitions":    []gin.H{{"from": "new", "to": "won"}, {"from": "limbo", "to": "lost"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	api.expect(http.StatusOK, http.MethodPut, "/workflows/lead", admin.Token, gin.H{
		"name":           "Short pipeline",
		"initial_status": "new",
		"transitions":    []gin.H{{"from": "new", "to": "won"}, {"from": "new", "to": "lost"}},
	}, nil)

	var lead models.Lead
	api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token, gin.H{"name": "Quick"}, &lead)
	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/leads/%d/transition", lead.ID), admin.Token, gin.H{"to": "won"}, nil)

	var got struct {
		Terminal []string `json:"terminal"`
	}
	api.expect(http.StatusOK, http.MethodGet, "/workflows/lead", admin.Token, nil, &got)
	assert.Equal(t, []string{"lost", "won"}, got.Terminal)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/workflows/sprint/reachable", admin.Token, nil).Code)
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup("acme", "pro")
	api.expect(http.StatusCreated, http.MethodPost, "/leads", admin.Token, gin.H{"name": "Deal", "value": 500}, nil)

	var summary struct {
		OpenLeads     int64   `json:"open_leads"`
		PipelineValue float64 `json:"pipeline_value"`
	}
	api.expect(http.StatusOK, http.MethodGet, "/dashboard", admin.Token, nil, &summary)
	assert.Equal(t, int64(1), summary.OpenLeads)
	assert.Equal(t, 500.0, summary.PipelineValue)
}
