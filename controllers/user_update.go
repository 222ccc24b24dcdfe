package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpdateMeRequest lists the only fields a user may change on their own account.
// Email, credits, role and status are not editable here.
type UpdateMeRequest struct {
	Name            *string `json:"name"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

// UpdateCurrentUser updates the logged user ("me").
// Route: PUT /api/me
func UpdateCurrentUser(c *gin.Context) {
	logged, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := EnvInstance(c).Users.UpdateProfile(logged.ID, req.Name, req.CurrentPassword, req.NewPassword)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, updated)
}
