package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"Food_Share/internal/logging"
	"Food_Share/internal/middleware"
	"Food_Share/internal/model"
	"Food_Share/internal/pkg"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError is the only place an error becomes an HTTP status.
func respondError(c *gin.Context, err error) {
	kind := pkg.KindOf(err)
	if kind == pkg.KindInternal {
		logging.FromContext(c, logrus.StandardLogger()).WithError(err).Error("request failed")
	}
	body := gin.H{"msg": pkg.PublicMessage(err)}
	if fields := pkg.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), body)
}

// respondList writes v with a weak ETag and answers 304 when the poller
// already holds the same body.
func respondList(c *gin.Context, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		respondError(c, pkg.Internal("encode list", err))
		return
	}
	tag := pkg.ETag(body)
	c.Header("ETag", tag)
	c.Header("Cache-Control", "no-cache")
	if etagMatch(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func etagMatch(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(tag, "W/") {
			return true
		}
	}
	return false
}

func actor(c *gin.Context) *model.User {
	return middleware.CurrentUser(c)
}

func idParam(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, pkg.Validation("invalid id", "id")
	}
	return id, nil
}
