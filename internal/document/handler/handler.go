package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/service"
	"github.com/gogotex/gogotex/backend/collab-service/internal/export"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/logger"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/middleware"
)

// Exporter publishes a document version. Nil disables the export route.
type Exporter interface {
	Export(ctx context.Context, documentID string, version int, requestedBy string) (*export.Result, error)
}

// writeError maps domain errors to an HTTP status and a stable code.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "SERVER_ERROR"
	switch {
	case errors.Is(err, document.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, document.ErrVersionNotFound):
		status, code = http.StatusNotFound, "VERSION_NOT_FOUND"
	case errors.Is(err, document.ErrLockConflict):
		status, code = http.StatusConflict, "LOCK_CONFLICT"
	case errors.Is(err, document.ErrStaleWrite):
		status, code = http.StatusConflict, "VERSION_CONFLICT"
	case errors.Is(err, document.ErrMalformedChange):
		status, code = http.StatusUnprocessableEntity, "MALFORMED_CHANGE"
	case errors.Is(err, document.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "INVALID_INPUT"})
}

// caller returns the authenticated user or writes 401.
func caller(c *gin.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", false
	}
	return uid, true
}

func versionParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		badRequest(c, "version must be an integer")
		return 0, false
	}
	return v, true
}

// RegisterDocumentRoutes mounts the document API on r. r is expected to run
// AuthMiddleware so every handler sees a user id.
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service, exp Exporter) {
	r.GET("/documents", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, d := range list {
			out = append(out, gin.H{
				"id": d.ID, "name": d.Name, "version": d.Version,
				"isLocked": d.IsLocked, "lockedBy": d.LockedBy, "updatedAt": d.UpdatedAt,
			})
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/documents", func(c *gin.Context) {
		uid, ok := caller(c)
		if !ok {
			return
		}
		var req struct {
			Name          string   `json:"name"`
			Content       string   `json:"content"`
			Collaborators []string `json:"collaborators"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		d, err := svc.Create(c.Request.Context(), service.CreateInput{
			Name: req.Name, Content: req.Content, CreatedBy: uid, Collaborators: req.Collaborators,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	})

	r.GET("/documents/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.DELETE("/documents/:id", func(c *gin.Context) {
		if _, ok := caller(c); !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/documents/:id/collaborators", func(c *gin.Context) {
		if _, ok := caller(c); !ok {
			return
		}
		var req struct {
			UserID string `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		d, err := svc.AddCollaborator(c.Request.Context(), c.Param("id"), req.UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.POST("/documents/:id/lock", func(c *gin.Context) {
		uid, ok := caller(c)
		if !ok {
			return
		}
		acquired, err := svc.Lock(c.Request.Context(), c.Param("id"), uid)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"acquired": acquired})
	})

	r.DELETE("/documents/:id/lock", func(c *gin.Context) {
		uid, ok := caller(c)
		if !ok {
			return
		}
		released, err := svc.Unlock(c.Request.Context(), c.Param("id"), uid)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"released": released})
	})

	r.POST("/documents/:id/edits", func(c *gin.Context) {
		uid, ok := caller(c)
		if !ok {
			return
		}
		var req struct {
			Ops []document.ChangeOp `json:"ops"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		d, err := svc.Edit(c.Request.Context(), c.Param("id"), uid, req.Ops)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.GET("/documents/:id/history", func(c *gin.Context) {
		hist, err := svc.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, hist)
	})

	r.GET("/documents/:id/versions/:version", func(c *gin.Context) {
		v, ok := versionParam(c, "version")
		if !ok {
			return
		}
		text, err := svc.ViewVersion(c.Request.Context(), c.Param("id"), v)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documentId": c.Param("id"), "version": v, "content": text})
	})

	r.GET("/documents/:id/compare", func(c *gin.Context) {
		from, err1 := strconv.Atoi(c.Query("from"))
		to, err2 := strconv.Atoi(c.Query("to"))
		if err1 != nil || err2 != nil {
			badRequest(c, "from and to must be integers")
			return
		}
		cmp, err := svc.Compare(c.Request.Context(), c.Param("id"), from, to)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cmp)
	})

	r.GET("/documents/:id/verify", func(c *gin.Context) {
		v, err := svc.Verify(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	})

	r.POST("/documents/:id/versions/:version/export", func(c *gin.Context) {
		if exp == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is not configured", "code": "EXPORT_DISABLED"})
			return
		}
		uid, ok := caller(c)
		if !ok {
			return
		}
		v, ok := versionParam(c, "version")
		if !ok {
			return
		}
		res, err := exp.Export(c.Request.Context(), c.Param("id"), v, uid)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.GET("/documents/:id/comments", func(c *gin.Context) {
		list, err := svc.ListComments(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	r.POST("/documents/:id/comments", func(c *gin.Context) {
		uid, ok := caller(c)
		if !ok {
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		cm, err := svc.AddComment(c.Request.Context(), c.Param("id"), uid, req.Content)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cm)
	})

	r.POST("/comments/:commentId/resolve", func(c *gin.Context) {
		if _, ok := caller(c); !ok {
			return
		}
		id := c.Param("commentId")
		if _, err := svc.ResolveComment(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		cm, err := svc.GetComment(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cm)
	})

	r.POST("/comments/:commentId/replies", func(c *gin.Context) {
		uid, ok := caller(c)
		if !ok {
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		reply, err := svc.AddReply(c.Request.Context(), c.Param("commentId"), uid, req.Content)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, reply)
	})
}
