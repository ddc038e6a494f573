package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/splitget/splitget/internal/app"
	"github.com/splitget/splitget/internal/engine"
)

type JobsController struct {
	App   *app.Context
	Queue *engine.QueueManager
}

// List returns every job the store knows about. Jobs still in the live
// queue are returned from memory so in-flight byte counts are current.
func (ctrl *JobsController) List(c *echo.Context) error {
	stored, err := ctrl.App.Store.GetJobs()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	live := ctrl.Queue.Jobs()
	liveByID := make(map[string]int, len(live))
	for i, job := range live {
		liveByID[job.ID] = i
	}

	resp := make([]jobResponse, 0, len(stored))
	for _, job := range stored {
		if i, ok := liveByID[job.ID]; ok {
			job = live[i]
		}
		resp = append(resp, newJobResponse(job))
	}

	return c.JSON(http.StatusOK, resp)
}

// Create queues a new download and returns it immediately. The job runs
// whenever the queue loop gets to it.
func (ctrl *JobsController) Create(c *echo.Context) error {
	req := createJobRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
	}

	job, err := ctrl.Queue.Add(req.URL, req.Connections)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, newJobResponse(job))
}

func (ctrl *JobsController) Get(c *echo.Context) error {
	job, ok := ctrl.Queue.Job(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	return c.JSON(http.StatusOK, newJobResponse(job))
}

// Cancel stops a pending or running job. Finished jobs cannot be
// cancelled and return a conflict.
func (ctrl *JobsController) Cancel(c *echo.Context) error {
	id := c.Param("id")

	job, ok := ctrl.Queue.Job(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	if !ctrl.Queue.Cancel(id) {
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "job already finished with status " + string(job.Status),
		})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancelling"})
}
