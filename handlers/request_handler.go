package handlers

import (
	"net/http"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/services"

	"github.com/gin-gonic/gin"
)

// RequestHandler serves join requests: players ask, the host decides.
type RequestHandler struct {
	membershipService *services.MembershipService
}

func NewRequestHandler(membershipService *services.MembershipService) *RequestHandler {
	return &RequestHandler{membershipService: membershipService}
}

func (h *RequestHandler) RequestJoin(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	req, err := h.membershipService.RequestJoin(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

func (h *RequestHandler) ListForGame(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.membershipService.ListForGame(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *RequestHandler) ListMine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.membershipService.ListMine(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *RequestHandler) GetRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	req, err := h.membershipService.GetRequest(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func (h *RequestHandler) Approve(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	player, err := h.membershipService.Approve(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, player)
}

func (h *RequestHandler) Reject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	req, err := h.membershipService.Reject(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.membershipService.Cancel(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request cancelled"})
}
