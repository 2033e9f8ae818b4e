package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"
)

const metricsContentType = "text/plain; version=0.0.4; charset=utf-8"

// Root reports that the service is up.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "service running"})
}

// Health is a liveness probe. It never touches the upstream services.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	ServiceName  string `json:"service_name,omitempty"`
	GitVersion   string `json:"git_version"`
	GitCommit    string `json:"git_commit,omitempty"`
	GitBranch    string `json:"git_branch,omitempty"`
	GitTreeState string `json:"git_tree_state,omitempty"`
	BuildDate    string `json:"build_date,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// Version returns the build information.
func Version(c *gin.Context) {
	info := version.Get()
	c.JSON(http.StatusOK, VersionResponse{
		ServiceName:  info.ServiceName,
		GitVersion:   info.GitVersion,
		GitCommit:    info.GitCommit,
		GitBranch:    info.GitBranch,
		GitTreeState: info.GitTreeState,
		BuildDate:    info.BuildDate,
		GoVersion:    info.GoVersion,
		Platform:     info.Platform,
	})
}

// Metrics exports the business metrics in Prometheus text format.
func (h *Handler) Metrics(c *gin.Context) {
	c.Header("Content-Type", metricsContentType)
	c.Status(http.StatusOK)
	_ = h.metrics.WriteTo(c.Writer, "legal_rag", "")
}
