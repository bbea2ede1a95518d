package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/pairamid-live/internal/lifecycle"
	"github.com/rickgao/pairamid-live/internal/version"
)

const fallbackMessage = "Loading..."

const pingTimeout = 2 * time.Second

// handleLive renders the gated view. The snapshot is only served while the
// gate is open; otherwise the body names the view the client should show.
func (s *Server) handleLive(c *gin.Context) {
	b := s.backend.Load()
	if b == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"view": lifecycle.ViewBlank.String()})
		return
	}

	st := b.Lifecycle.Status()
	switch st.View {
	case lifecycle.ViewContent:
		snap, _ := b.Data.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"view":       st.View.String(),
			"generation": b.Generation,
			"snapshot":   snap,
		})
	case lifecycle.ViewFallback:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"view":    st.View.String(),
			"message": fallbackMessage,
		})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"view": lifecycle.ViewBlank.String()})
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	b := s.backend.Load()
	if b == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active generation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": b.Generation,
		"status":     b.Lifecycle.Status(),
	})
}

// handleHealth reports 200 when the controller is not abandoned and the
// journal database (if any) answers a ping.
func (s *Server) handleHealth(c *gin.Context) {
	healthy := true
	body := gin.H{"version": version.Get()}

	if b := s.backend.Load(); b != nil {
		st := b.Lifecycle.Status()
		body["generation"] = b.Generation
		body["state"] = st.State
		body["channel_connected"] = b.Channel.IsConnected()
		if st.State == lifecycle.StateAbandoned {
			healthy = false
		}
	} else {
		body["state"] = "starting"
		healthy = false
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			body["database"] = err.Error()
			healthy = false
		} else {
			body["database"] = "ok"
		}
	}

	code := http.StatusOK
	body["status"] = "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(code, body)
}

func (s *Server) handleReload(c *gin.Context) {
	if s.reload == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reload not supported"})
		return
	}
	s.logger.Info("reload requested", "remote", c.ClientIP())
	s.reload("http")
	c.JSON(http.StatusAccepted, gin.H{"status": "reloading"})
}
