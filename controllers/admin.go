package controllers

import (
	"net/http"

	"platestyle/services"

	"github.com/gin-gonic/gin"
)

type GrantCreditsRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason"`
}

type SetAdminRequest struct {
	Admin *bool `json:"admin" binding:"required"`
}

type SetStatusRequest struct {
	Status *int `json:"status" binding:"required"`
}

func AdminListUsers(c *gin.Context) {
	page, err := EnvInstance(c).Admin.ListUsers(c.Query("q"), PageFromQuery(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, page)
}

func AdminGrantCredits(c *gin.Context) {
	actor, _ := GetUserLogged(c)
	userID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, bindErrorMessage(err), http.StatusBadRequest)
		return
	}

	user, err := EnvInstance(c).Credits.Grant(actor.ID, userID, req.Delta, req.Reason)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	user.Password = ""
	RespondSuccess(c, user)
}

func AdminSetUserAdmin(c *gin.Context) {
	actor, _ := GetUserLogged(c)
	userID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var req SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, bindErrorMessage(err), http.StatusBadRequest)
		return
	}

	user, err := EnvInstance(c).Admin.SetAdmin(actor.ID, userID, *req.Admin)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, user)
}

func AdminSetUserStatus(c *gin.Context) {
	actor, _ := GetUserLogged(c)
	userID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, bindErrorMessage(err), http.StatusBadRequest)
		return
	}

	user, err := EnvInstance(c).Admin.SetStatus(actor.ID, userID, *req.Status)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, user)
}

func AdminListJobs(c *gin.Context) {
	userID, ok := QueryID(c, "user_id")
	if !ok {
		return
	}

	page, err := EnvInstance(c).Jobs.List(services.JobFilter{
		UserID: userID,
		Status: c.Query("status"),
	}, PageFromQuery(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, page)
}

func AdminDeleteJob(c *gin.Context) {
	actor, _ := GetUserLogged(c)

	id := c.Param("id")
	if err := EnvInstance(c).Jobs.Delete(c.Request.Context(), actor, id); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"id": id, "deleted": true})
}

func AdminStats(c *gin.Context) {
	stats, err := EnvInstance(c).Admin.Stats()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, stats)
}

func AdminCreditLedger(c *gin.Context) {
	userID, ok := QueryID(c, "user_id")
	if !ok {
		return
	}

	page, err := EnvInstance(c).Credits.Ledger(userID, PageFromQuery(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, page)
}
