package webserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/ibots/src/control"
)

type handlers struct {
	ctrl Controller
}

func (h *handlers) Status(c *gin.Context) {
	out, err := h.ctrl.Status(c.Request.Context(), formList(c, "bots"))
	respond(c, out, err)
}

func (h *handlers) Start(c *gin.Context) {
	out, err := h.ctrl.Start(c.Request.Context(), formList(c, "bots"))
	respond(c, out, err)
}

func (h *handlers) Stop(c *gin.Context) {
	out, err := h.ctrl.Stop(c.Request.Context(), formList(c, "bots"))
	respond(c, out, err)
}

func (h *handlers) Wipe(c *gin.Context) {
	out, err := h.ctrl.Wipe(c.Request.Context(), formList(c, "bots"))
	respond(c, out, err)
}

func (h *handlers) Bot(c *gin.Context) {
	instruction, ok := requireInstruction(c)
	if !ok {
		return
	}
	out, err := h.ctrl.Command(c.Request.Context(), formList(c, "targets"), instruction)
	respond(c, out, err)
}

func (h *handlers) Resource(c *gin.Context) {
	instruction, ok := requireInstruction(c)
	if !ok {
		return
	}
	out, err := h.ctrl.Resource(c.Request.Context(), formList(c, "targets"), instruction)
	respond(c, out, err)
}

func (h *handlers) Interact(c *gin.Context) {
	target := strings.TrimSpace(c.PostForm("target"))
	if target == "" {
		if t := formList(c, "targets"); len(t) == 1 {
			target = t[0]
		}
	}
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "exactly one target required"})
		return
	}
	insp, err := h.ctrl.Interact(c.Request.Context(), target)
	if err != nil {
		respond(c, nil, err)
		return
	}
	if insp == nil {
		c.JSON(http.StatusAccepted, gin.H{target: "requested"})
		return
	}
	c.JSON(http.StatusOK, gin.H{target: insp})
}

func requireInstruction(c *gin.Context) (string, bool) {
	instruction := strings.TrimSpace(c.PostForm("instruction"))
	if instruction == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "instruction required"})
		return "", false
	}
	return instruction, true
}

// formList reads a repeated form field, also accepting comma-separated
// values.
func formList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.PostFormArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func respond(c *gin.Context, out any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, out)
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, control.ErrUnknownBot), errors.Is(err, control.ErrUnknownResource):
		status = http.StatusNotFound
	case errors.Is(err, control.ErrAlreadyRunning), errors.Is(err, control.ErrNotRunning):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"err": err.Error()})
}
