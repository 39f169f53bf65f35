package handler

import (
	"errors"
	"net/http"
	"time"

	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/service"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	svc *service.PostService
}

// createFoodReq carries times as strings so both RFC 3339 and the
// browser's datetime-local format are accepted. datetime-local values have
// no zone: they are read in the zone given by TZOffset, which takes the
// value of JavaScript's Date.getTimezoneOffset() (minutes, UTC minus local,
// so -330 for UTC+5:30). Without TZOffset they are read as UTC.
type createFoodReq struct {
	FoodType     string   `json:"foodType"`
	FoodItems    []string `json:"foodItems"`
	Quantity     string   `json:"quantity"`
	CookedTime   string   `json:"cookedTime"`
	ExpiryTime   string   `json:"expiryTime"`
	Location     string   `json:"location"`
	ContactPhone string   `json:"contactPhone"`
	TZOffset     *int     `json:"tzOffset"`
}

// maxTZOffset is the widest real offset from UTC, in minutes.
const maxTZOffset = 14 * 60

func (r createFoodReq) location() (*time.Location, bool) {
	if r.TZOffset == nil {
		return time.UTC, true
	}
	off := *r.TZOffset
	if off < -maxTZOffset || off > maxTZOffset {
		return nil, false
	}
	return time.FixedZone("", -off*60), true
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func NewPostHandler(svc *service.PostService) *PostHandler {
	return &PostHandler{svc: svc}
}

// parseTime reads s in loc unless s carries its own offset. The result is UTC.
func parseTime(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (h *PostHandler) CreateFood(c *gin.Context) {
	var req createFoodReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, pkg.Validation("invalid params"))
		return
	}
	loc, ok := req.location()
	if !ok {
		respondError(c, pkg.Validation("invalid timezone offset", "tzOffset"))
		return
	}
	cooked, ok := parseTime(req.CookedTime, loc)
	if !ok {
		respondError(c, pkg.Validation("invalid time", "cookedTime"))
		return
	}
	expiry, ok := parseTime(req.ExpiryTime, loc)
	if !ok {
		respondError(c, pkg.Validation("invalid time", "expiryTime"))
		return
	}

	post, err := h.svc.CreateFood(c.Request.Context(), actor(c), service.FoodInput{
		FoodType:     req.FoodType,
		FoodItems:    req.FoodItems,
		Quantity:     req.Quantity,
		CookedTime:   cooked,
		ExpiryTime:   expiry,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// ListFood serves the polling view of available food, optionally by ?type=.
func (h *PostHandler) ListFood(c *gin.Context) {
	list, err := h.svc.ListAvailableFood(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, list)
}

func (h *PostHandler) MyFood(c *gin.Context) {
	list, err := h.svc.ListMyFood(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, list)
}

func (h *PostHandler) DeleteFood(c *gin.Context) {
	h.deletePost(c, model.KindFood)
}

// CreateResource takes a multipart form with up to five "images" files.
func (h *PostHandler) CreateResource(c *gin.Context) {
	var in service.ResourceInput
	if err := c.ShouldBind(&in); err != nil {
		respondError(c, pkg.Validation("invalid params"))
		return
	}

	var uploads []service.ImageUpload
	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondError(c, pkg.Validation("invalid form data", "images"))
		return
	}
	if form != nil {
		for _, fh := range form.File["images"] {
			f, err := fh.Open()
			if err != nil {
				respondError(c, pkg.Validation("failed to open file "+fh.Filename, "images"))
				return
			}
			defer f.Close()
			uploads = append(uploads, service.ImageUpload{Filename: fh.Filename, Reader: f})
		}
	}

	post, err := h.svc.CreateResource(c.Request.Context(), actor(c), in, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) ListResources(c *gin.Context) {
	list, err := h.svc.ListAvailableResources(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, list)
}

func (h *PostHandler) MyResources(c *gin.Context) {
	list, err := h.svc.ListMyResources(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, list)
}

func (h *PostHandler) DeleteResource(c *gin.Context) {
	h.deletePost(c, model.KindResource)
}

func (h *PostHandler) deletePost(c *gin.Context, kind model.PostKind) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err = h.svc.DeletePost(c.Request.Context(), actor(c), model.PostRef{Kind: kind, ID: id}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}
