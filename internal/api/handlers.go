package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/session"
	"github.com/ppiankov/factstrip/internal/verify"
)

type handlers struct {
	sess *session.Session
}

type checkRequest struct {
	Statement string `json:"statement"`
	Style     string `json:"style"`
}

func (h handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.sess.Snapshot())
}

// Check runs one verification and blocks until it resolves
func (h handlers) Check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(verify.KindValidation, "invalid request body"))
		return
	}

	res, err := h.sess.Submit(c.Request.Context(), req.Statement, model.Style(req.Style))
	if err != nil {
		if errors.Is(err, verify.ErrSuperseded) {
			c.JSON(http.StatusConflict, errorBody(verify.KindUnknown, err.Error()))
			return
		}
		kind := verify.KindOf(err)
		if kind == "" {
			kind = verify.KindUnknown
		}
		c.JSON(statusFor(kind), errorBody(kind, err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":    res,
		"analytics": h.sess.Analytics(),
	})
}

func (h handlers) Clear(c *gin.Context) {
	h.sess.Clear()
	c.Status(http.StatusNoContent)
}

func (h handlers) ListHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"history":   h.sess.History(),
		"analytics": h.sess.Analytics(),
	})
}

func (h handlers) ClearHistory(c *gin.Context) {
	h.sess.ClearAll()
	c.Status(http.StatusNoContent)
}

func (h handlers) GetEntry(c *gin.Context) {
	entry, ok := h.sess.GetByID(model.EntryID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, errorBody(verify.KindValidation, session.ErrNotFound.Error()))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h handlers) RemoveEntry(c *gin.Context) {
	if err := h.sess.Remove(model.EntryID(c.Param("id"))); err != nil {
		c.JSON(http.StatusNotFound, errorBody(verify.KindValidation, err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h handlers) RegenerateExplanation(c *gin.Context) {
	entry, err := h.sess.RegenerateExplanation(c.Request.Context(), model.EntryID(c.Param("id")))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody(verify.KindValidation, err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(verify.KindUnknown, err.Error()))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func statusFor(kind verify.Kind) int {
	switch kind {
	case verify.KindValidation:
		return http.StatusBadRequest
	case verify.KindNetwork:
		return http.StatusGatewayTimeout
	case verify.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(kind verify.Kind, msg string) gin.H {
	return gin.H{"error": gin.H{"kind": kind, "message": msg}}
}
