package handler

import (
	"net/http"

	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/service"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	svc *service.RequestService
}

// createRequestReq names the target with exactly one of the two ids.
type createRequestReq struct {
	FoodPostID     uint64   `json:"foodPostId"`
	ResourcePostID uint64   `json:"resourcePostId"`
	Message        string   `json:"message"`
	SelectedItems  []string `json:"selectedItems"`
}

type resolveReq struct {
	Status model.RequestStatus `json:"status"`
}

func NewRequestHandler(svc *service.RequestService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

func (r createRequestReq) target() (model.PostRef, error) {
	switch {
	case r.FoodPostID != 0 && r.ResourcePostID != 0:
		return model.PostRef{}, pkg.Validation("only one of foodPostId or resourcePostId may be set", "foodPostId", "resourcePostId")
	case r.FoodPostID != 0:
		return model.PostRef{Kind: model.KindFood, ID: r.FoodPostID}, nil
	case r.ResourcePostID != 0:
		return model.PostRef{Kind: model.KindResource, ID: r.ResourcePostID}, nil
	default:
		return model.PostRef{}, pkg.Validation("foodPostId or resourcePostId is required", "foodPostId", "resourcePostId")
	}
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, pkg.Validation("invalid params"))
		return
	}
	ref, err := req.target()
	if err != nil {
		respondError(c, err)
		return
	}

	created, err := h.svc.CreateRequest(c.Request.Context(), actor(c), service.CreateRequestInput{
		Target:        ref,
		Message:       req.Message,
		SelectedItems: req.SelectedItems,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *RequestHandler) Mine(c *gin.Context) {
	list, err := h.svc.ListMyRequests(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, list)
}

func (h *RequestHandler) ForDonor(c *gin.Context) {
	list, err := h.svc.ListDonorRequests(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, list)
}

// Resolve accepts or rejects a request: {"status": "Accepted"|"Rejected"}.
func (h *RequestHandler) Resolve(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req resolveReq
	if err = c.ShouldBindJSON(&req); err != nil {
		respondError(c, pkg.Validation("invalid params", "status"))
		return
	}

	updated, err := h.svc.ResolveRequest(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
