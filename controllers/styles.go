package controllers

import "github.com/gin-gonic/gin"

// GetStyles lists the style catalog and the accepted aspect ratios.
func GetStyles(c *gin.Context) {
	RespondSuccess(c, EnvInstance(c).Catalog)
}
