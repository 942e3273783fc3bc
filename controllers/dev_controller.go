// controllers/dev_controller.go
package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nutritrack/classifier"
	"nutritrack/services"
)

// DevController backs the non-production helpers: scripting the static
// classifier and sending a test push.
type DevController struct {
	Push  *services.PushService
	Model *classifier.StaticModel // nil unless CLASSIFIER_BACKEND=static
}

func NewDevController(p *services.PushService, model *classifier.StaticModel) *DevController {
	return &DevController{Push: p, Model: model}
}

type predictionsReq struct {
	Predictions []classifier.Prediction `json:"predictions"`
	Fail        string                  `json:"fail"`
}

// POST /dev/classifier sets what the static model answers for every frame.
func (d *DevController) SetPredictions(c *gin.Context) {
	if d.Model == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "static classifier not enabled"})
		return
	}
	var req predictionsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if req.Fail != "" {
		d.Model.Fail(errors.New(req.Fail))
	} else {
		d.Model.Set(req.Predictions...)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type pushReq struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// POST /dev/push
func (d *DevController) PushTest(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req pushReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if req.Title == "" {
		req.Title = "Test alert"
	}
	if req.Body == "" {
		req.Body = "This is only a test."
	}
	if req.Data == nil {
		req.Data = map[string]string{"type": "warning"}
	}
	d.Push.PushToUser(c.Request.Context(), uid, req.Title, req.Body, req.Data)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
