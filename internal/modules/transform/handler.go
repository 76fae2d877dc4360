package transform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/middleware"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/pagination"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("", authMW)

	g.POST("/transformations", h.runTransformation)
	g.GET("/transformations/:fingerprint", h.getTransformation)
	g.GET("/transformations/:fingerprint/audio", h.getTransformationAudio)
	g.GET("/history", h.listHistory)
	g.GET("/usage", h.listUsage)
}

// POST /transformations  [auth]
func (h *Handler) runTransformation(c *gin.Context) {
	var dto runTransformationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Run(c.Request.Context(), Request{
		UserID:   middleware.UserID(c),
		Action:   dto.Action,
		Text:     dto.Text,
		Options:  dto.Options,
		CourseID: dto.CourseID,
		LessonID: dto.LessonID,
	})
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			response.UnprocessableEntity(c, vErr.Error())
		case errors.Is(err, ErrGenerationFailed):
			response.InternalError(c, ErrGenerationFailed)
		case errors.Is(err, ErrStoreFailure):
			response.InternalError(c, ErrStoreFailure)
		default:
			response.InternalError(c, err)
		}
		return
	}

	if resp.Audio != nil {
		resp.Audio.URL = fmt.Sprintf("/api/v2/transformations/%s/audio", resp.Fingerprint)
	}
	response.OK(c, resp)
}

// GET /transformations/:fingerprint  [auth]
func (h *Handler) getTransformation(c *gin.Context) {
	rec, err := h.svc.GetByFingerprint(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if rec == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, rec)
}

// GET /transformations/:fingerprint/audio  [auth]
func (h *Handler) getTransformationAudio(c *gin.Context) {
	rec, err := h.svc.GetAudio(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	if !rec.HasAudio() {
		response.NotFoundMsg(c, "no audio artifact for this transformation")
		return
	}
	c.Data(http.StatusOK, rec.AudioMime, rec.AudioData)
}

// GET /history?courseId=&lessonId=  [auth]
func (h *Handler) listHistory(c *gin.Context) {
	q := pagination.FromContext(c)
	items, pag, err := h.svc.History(
		c.Request.Context(),
		middleware.UserID(c),
		c.Query("courseId"),
		c.Query("lessonId"),
		q,
	)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /usage  [auth]
func (h *Handler) listUsage(c *gin.Context) {
	q := pagination.FromContext(c)
	items, pag, err := h.svc.Usage(c.Request.Context(), middleware.UserID(c), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}
