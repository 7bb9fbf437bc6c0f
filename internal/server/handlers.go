package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/comfybridge/internal/session"
	"github.com/GriffinCanCode/comfybridge/internal/status"
	"github.com/GriffinCanCode/comfybridge/internal/workflow"
)

// Controller is the session surface the handlers drive.
type Controller interface {
	Start(ctx context.Context) error
	Cancel(ctx context.Context) error
	SetAutoQueue(on bool)
	SetAdvancedPrompting(on bool)
	SetWorkflow(ref string)
	MarkDocumentChanged()
	Snapshot() session.Snapshot
}

// StatusReader reads the status file.
type StatusReader interface {
	Read() (status.Record, error)
}

// Catalog lists and selects workflows.
type Catalog interface {
	List() ([]workflow.Workflow, error)
	Select(name string) (workflow.Workflow, error)
	Current() (name, path string)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	controller Controller
	status     StatusReader
	catalog    Catalog
	connection func() string
}

// Health handles the liveness check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"connection": h.connectionState(),
		"session":    h.controller.Snapshot().State,
	})
}

// Status returns the session snapshot and the mirrored record
func (h *Handlers) Status(c *gin.Context) {
	resp := gin.H{
		"session":    h.controller.Snapshot(),
		"connection": h.connectionState(),
	}
	if h.status != nil {
		rec, err := h.status.Read()
		if err != nil {
			resp["mirror_error"] = err.Error()
		} else {
			resp["mirror"] = rec
		}
	}
	c.JSON(http.StatusOK, resp)
}

// jobContext detaches job work from the request so a client hanging up
// does not fail the export or the send.
func jobContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// Queue toggles the job: starts when idle, cancels when active
func (h *Handlers) Queue(c *gin.Context) {
	err := h.controller.Start(jobContext(c))
	switch {
	case errors.Is(err, session.ErrNoSelection):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "session": h.controller.Snapshot()})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": h.controller.Snapshot()})
	default:
		c.JSON(http.StatusAccepted, h.controller.Snapshot())
	}
}

// Cancel requests cancellation of the active job
func (h *Handlers) Cancel(c *gin.Context) {
	if err := h.controller.Cancel(jobContext(c)); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": h.controller.Snapshot()})
		return
	}
	c.JSON(http.StatusAccepted, h.controller.Snapshot())
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// AutoQueue sets the auto-queue toggle
func (h *Handlers) AutoQueue(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"enabled\": bool}"})
		return
	}
	h.controller.SetAutoQueue(*req.Enabled)
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

type promptingRequest struct {
	Advanced *bool `json:"advanced"`
}

// Prompting sets the advanced-prompting toggle
func (h *Handlers) Prompting(c *gin.Context) {
	var req promptingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Advanced == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"advanced\": bool}"})
		return
	}
	h.controller.SetAdvancedPrompting(*req.Advanced)
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// DocumentChanged records an edit to the document
func (h *Handlers) DocumentChanged(c *gin.Context) {
	h.controller.MarkDocumentChanged()
	c.JSON(http.StatusAccepted, h.controller.Snapshot())
}

// ListWorkflows lists the workflow catalog
func (h *Handlers) ListWorkflows(c *gin.Context) {
	list, err := h.catalog.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	current, _ := h.catalog.Current()
	c.JSON(http.StatusOK, gin.H{
		"workflows": list,
		"current":   current,
	})
}

type selectRequest struct {
	Name string `json:"name" binding:"required"`
}

// SelectWorkflow changes the workflow used for new jobs
func (h *Handlers) SelectWorkflow(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"name\": string}"})
		return
	}

	wf, err := h.catalog.Select(req.Name)
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, workflow.ErrInvalidJSON):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	_, path := h.catalog.Current()
	h.controller.SetWorkflow(path)
	c.JSON(http.StatusOK, wf)
}

func (h *Handlers) connectionState() string {
	if h.connection == nil {
		return "unknown"
	}
	return h.connection()
}
