package http

import (
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/batch-weighing/internal/infra/listeners"
)

type listenerHandler struct {
	reg *listeners.Registry
}

func (h *listenerHandler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.reg.List()})
}

func (h *listenerHandler) startTCP(c *gin.Context) {
	var req struct {
		Port int    `json:"port"`
		Host string `json:"host"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Port <= 0 || req.Port > 65535 {
		badRequest(c, "port must be between 1 and 65535")
		return
	}
	info, err := h.reg.Start(c.Request.Context(), listeners.KindTCP, net.JoinHostPort(req.Host, strconv.Itoa(req.Port)))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "TCP Server started on port " + strconv.Itoa(info.Port), "listener": info})
}

func (h *listenerHandler) stopTCP(c *gin.Context) {
	port, err := strconv.Atoi(c.Param("port"))
	if err != nil {
		badRequest(c, "port must be a number")
		return
	}
	if _, err := h.reg.Stop(listeners.KindTCP, port); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "TCP Server stopped on port " + strconv.Itoa(port)})
}

func (h *listenerHandler) latest(c *gin.Context) {
	rd, ok := h.reg.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no reading received yet"})
		return
	}
	c.JSON(http.StatusOK, rd)
}
