package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hyperlearn/internal/domain"
	"hyperlearn/internal/sandbox"
)

type createRunRequest struct {
	// Document to run; empty runs the editor's current text.
	Document string `json:"document"`
}

func (h *Handler) createRun(c *gin.Context) {
	var req createRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var (
		handle sandbox.Handle
		err    error
	)
	if req.Document != "" {
		handle, err = h.app.Run(c.Request.Context(), req.Document)
	} else {
		handle, err = h.app.RunCode(c.Request.Context())
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"handle": handle})
}

func (h *Handler) runner(c *gin.Context) (sandbox.Runner, sandbox.Handle, bool) {
	runs, err := h.app.Runs(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return nil, "", false
	}
	return runs, sandbox.Handle(c.Param("handle")), true
}

func (h *Handler) runLog(c *gin.Context) {
	runs, handle, ok := h.runner(c)
	if !ok {
		return
	}
	lines, err := runs.Lines(handle)
	if err != nil {
		h.fail(c, err)
		return
	}
	if lines == nil {
		lines = []domain.RunLine{}
	}
	c.JSON(http.StatusOK, gin.H{"handle": handle, "lines": lines})
}

func (h *Handler) runPreview(c *gin.Context) {
	runs, handle, ok := h.runner(c)
	if !ok {
		return
	}
	markup, err := runs.Preview(handle)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"handle": handle, "html": markup})
}

func (h *Handler) disposeRun(c *gin.Context) {
	runs, handle, ok := h.runner(c)
	if !ok {
		return
	}
	if err := runs.Dispose(handle); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// streamRun sends the run's lines as server-sent "line" events followed by
// one "end" event carrying "finished" or "disposed".
func (h *Handler) streamRun(c *gin.Context) {
	runs, handle, ok := h.runner(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan domain.RunLine, 64)
	cancel, err := runs.Subscribe(handle, func(l domain.RunLine) {
		select {
		case lines <- l:
		case <-stop:
		}
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runs.Wait(ctx, handle) }()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	last := 0
	send := func(l domain.RunLine) {
		if l.Seq <= last {
			return
		}
		last = l.Seq
		c.SSEvent("line", l)
		c.Writer.Flush()
	}

	for {
		select {
		case l := <-lines:
			send(l)
		case err := <-done:
			status := "finished"
			switch {
			case errors.Is(err, sandbox.ErrRunDisposed):
				status = "disposed"
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return
			case err == nil:
				// Lines captured before completion may still be queued
				// for delivery; the snapshot is authoritative.
				if snapshot, err := runs.Lines(handle); err == nil {
					for _, l := range snapshot {
						send(l)
					}
				}
			}
			c.SSEvent("end", gin.H{"handle": handle, "status": status})
			c.Writer.Flush()
			return
		case <-ctx.Done():
			return
		}
	}
}
