package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Me(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	user.Password = ""
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// MyCredits lists the logged user's credit ledger.
func MyCredits(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	page, err := EnvInstance(c).Credits.Ledger(user.ID, PageFromQuery(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, page)
}
