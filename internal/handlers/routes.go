package handlers

import (
	"github.com/gin-gonic/gin"

	"opsdesk/internal/models"
)

// Register mounts the API on api. Everything except signup and login needs a
// bearer token; feature groups additionally need the tenant's plan to include
// the feature.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/signup", h.Signup)
	api.POST("/login", h.Login)

	authed := api.Group("", h.Authenticate)
	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)

	users := h.userRecords()
	authed.GET("/users", h.Require("users", models.ActionView), users.list)
	authed.POST("/users", h.Require("users", models.ActionCreate), h.CreateUser)
	authed.GET("/users/:id", h.Require("users", models.ActionView), users.get)
	authed.PUT("/users/:id", h.Require("users", models.ActionEdit), users.update)
	authed.DELETE("/users/:id", h.Require("users", models.ActionDelete), h.deleteUser(users))
	authed.PUT("/users/:id/password", h.SetPassword)

	h.teamRecords().mount(h, authed, "/teams")

	authed.GET("/roles", h.Require("roles", models.ActionView), h.ListRoles)
	authed.POST("/roles", h.Require("roles", models.ActionCreate), h.CreateRole)
	authed.GET("/roles/:id", h.Require("roles", models.ActionView), h.GetRole)
	authed.PUT("/roles/:id", h.Require("roles", models.ActionEdit), h.UpdateRole)
	authed.DELETE("/roles/:id", h.Require("roles", models.ActionDelete), h.DeleteRole)

	authed.GET("/workflows", h.Require("workflows", models.ActionView), h.ListWorkflows)
	authed.GET("/workflows/:entity", h.Require("workflows", models.ActionView), h.GetWorkflow)
	authed.PUT("/workflows/:entity", h.Require("workflows", models.ActionManage), h.PutWorkflow)
	authed.GET("/workflows/:entity/reachable", h.Require("workflows", models.ActionView), h.Reachable)
	authed.GET("/history/:entity/:id", h.History)

	authed.GET("/entitlements", h.Require("entitlements", models.ActionView), h.ListEntitlements)
	authed.PUT("/entitlements/:feature", h.Require("entitlements", models.ActionManage), h.OverrideEntitlement)
	authed.DELETE("/entitlements/:feature", h.Require("entitlements", models.ActionManage), h.ClearEntitlement)
	authed.PUT("/plan", h.Require("entitlements", models.ActionManage), h.ChangePlan)

	authed.GET("/dashboard", h.Require("dashboard", models.ActionView), h.Dashboard)

	comments := h.commentRecords()
	authed.GET("/comments/thread", h.Require("comments", models.ActionView), h.Thread)
	comments.mount(h, authed, "/comments")

	hr := authed.Group("", h.Feature("hr"))
	employees := h.employeeRecords()
	employees.mount(h, hr, "/employees")
	hr.POST("/employees/:id/transition", h.Require("employees", models.ActionTransition), employees.transition(h, "employee"))
	hr.GET("/employees/:id/onboarding", h.Require("employees", models.ActionView), h.onboardingProgress(employees))
	hr.POST("/employees/:id/onboarding/:position/complete", h.Require("employees", models.ActionEdit), h.completeOnboarding(employees))
	h.announcementRecords().mount(h, hr, "/announcements")

	recruiting := authed.Group("", h.Feature("recruiting"))
	candidates := h.candidateRecords()
	candidates.mount(h, recruiting, "/candidates")
	recruiting.POST("/candidates/:id/transition", h.Require("candidates", models.ActionTransition), candidates.transition(h, "candidate"))
	h.interviewRecords().mount(h, recruiting, "/interviews")
	offers := h.offerRecords()
	offers.mount(h, recruiting, "/offers")
	recruiting.POST("/offers/:id/transition", h.Require("offers", models.ActionTransition), offers.transition(h, "offer"))

	performance := authed.Group("", h.Feature("performance"))
	h.goalRecords().mount(h, performance, "/goals")
	h.appraisalRecords().mount(h, performance, "/appraisals")

	crm := authed.Group("", h.Feature("crm"))
	leads := h.leadRecords()
	leads.mount(h, crm, "/leads")
	crm.POST("/leads/:id/transition", h.Require("leads", models.ActionTransition), leads.transition(h, "lead"))

	projects := authed.Group("", h.Feature("projects"))
	h.projectRecords().mount(h, projects, "/projects")
	h.sprintRecords().mount(h, projects, "/sprints")
	projects.POST("/sprints/:id/start", h.Require("sprints", models.ActionEdit), h.StartSprint)
	projects.POST("/sprints/:id/complete", h.Require("sprints", models.ActionEdit), h.CompleteSprint)
}
