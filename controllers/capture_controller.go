package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nutritrack/capture"
	"nutritrack/models"
	"nutritrack/services"
	"nutritrack/utils"
)

type CaptureController struct {
	Captures *services.CaptureService
}

func NewCaptureController(cs *services.CaptureService) *CaptureController {
	return &CaptureController{Captures: cs}
}

type startCaptureReq struct {
	MealType string `json:"meal_type"`
}

// POST /capture/sessions
func (h *CaptureController) Start(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req startCaptureReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body")
			return
		}
	}
	var mt models.MealType
	if req.MealType != "" {
		parsed, ok := models.ParseMealType(req.MealType)
		if !ok {
			badRequest(c, "unknown meal_type")
			return
		}
		mt = parsed
	}
	sess, err := h.Captures.Start(c.Request.Context(), uid, mt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// runner resolves :id for the caller; it has answered the request when ok
// is false.
func (h *CaptureController) runner(c *gin.Context) (*capture.Runner, bool) {
	uid, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	r, err := h.Captures.Get(uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return r, true
}

func (h *CaptureController) reply(c *gin.Context, st capture.State, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services.CaptureSession{ID: c.Param("id"), State: st})
}

// GET /capture/sessions/:id
func (h *CaptureController) Get(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	h.reply(c, r.State(), nil)
}

type frameReq struct {
	Image string `json:"image" binding:"required"` // data:image/...;base64,...
}

// POST /capture/sessions/:id/frames
func (h *CaptureController) PushFrame(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	var req frameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "image required")
		return
	}
	frame, err := utils.DecodeDataURI(req.Image)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := r.PushFrame(frame); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"phase": r.State().Phase})
}

// POST /capture/sessions/:id/accept
func (h *CaptureController) Accept(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	st, err := r.Accept(c.Request.Context())
	h.reply(c, st, err)
}

// action wraps the argument-less transitions.
func (h *CaptureController) action(fn func(*capture.Runner) (capture.State, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := h.runner(c)
		if !ok {
			return
		}
		st, err := fn(r)
		h.reply(c, st, err)
	}
}

func (h *CaptureController) Reject() gin.HandlerFunc { return h.action((*capture.Runner).Reject) }
func (h *CaptureController) Retry() gin.HandlerFunc { return h.action((*capture.Runner).Retry) }
func (h *CaptureController) Cancel() gin.HandlerFunc { return h.action((*capture.Runner).Cancel) }
func (h *CaptureController) Review() gin.HandlerFunc { return h.action((*capture.Runner).Review) }
func (h *CaptureController) Resume() gin.HandlerFunc { return h.action((*capture.Runner).Resume) }

// DELETE /capture/sessions/:id/dishes/:index
func (h *CaptureController) RemoveDish(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid index")
		return
	}
	st, err := r.RemoveDish(i)
	h.reply(c, st, err)
}

type updateCaptureReq struct {
	MealType *string `json:"meal_type"`
	Note     *string `json:"note"`
}

// PATCH /capture/sessions/:id
func (h *CaptureController) Update(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	var req updateCaptureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	st := r.State()
	var err error
	if req.MealType != nil {
		mt, ok := models.ParseMealType(*req.MealType)
		if !ok {
			badRequest(c, "unknown meal_type")
			return
		}
		if st, err = r.SetMealType(mt); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.Note != nil {
		st, err = r.SetNote(*req.Note)
	}
	h.reply(c, st, err)
}

// POST /capture/sessions/:id/commit
func (h *CaptureController) Commit(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	meal, summary, err := r.Commit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meal": meal, "summary": summary, "state": r.State()})
}

// DELETE /capture/sessions/:id
func (h *CaptureController) End(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.Captures.End(uid, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
