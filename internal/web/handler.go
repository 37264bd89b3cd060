package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/sleepy-project/sleepy-agent/internal/config"
	"github.com/sleepy-project/sleepy-agent/internal/reporter"
	"github.com/sleepy-project/sleepy-agent/internal/version"
	"github.com/sleepy-project/sleepy-agent/pkg/utils"
)

// StatsProvider exposes delivery counters
type StatsProvider interface {
	Stats() []reporter.SinkStats
}

type Handler struct {
	config        *config.Config
	stats         StatsProvider
	displayServer func() string
	hostID        string
	startedAt     time.Time
}

// NewHandler creates the status handler. displayServer is called per request
// because the backend answering window queries can change at runtime.
func NewHandler(cfg *config.Config, stats StatsProvider, displayServer func() string) *Handler {
	hostID, err := host.HostID()
	if err != nil {
		log.Debug().Err(err).Msg("Host id unavailable")
	}

	return &Handler{
		config:        cfg,
		stats:         stats,
		displayServer: displayServer,
		hostID:        hostID,
		startedAt:     time.Now(),
	}
}

func (h *Handler) SetupRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/api/status", h.handleStatus)
}

type pollStatus struct {
	ActiveInterval string `json:"active_interval"`
	IdleInterval   string `json:"idle_interval"`
	IdleThreshold  string `json:"idle_threshold"`
}

type statusResponse struct {
	Version       string               `json:"version"`
	Device        int                  `json:"device"`
	Endpoint      string               `json:"endpoint"`
	HostID        string               `json:"host_id,omitempty"`
	DisplayServer string               `json:"display_server"`
	Uptime        string               `json:"uptime"`
	Poll          pollStatus           `json:"poll"`
	OfflineOnExit bool                 `json:"offline_on_exit"`
	Sinks         []reporter.SinkStats `json:"sinks"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, statusResponse{
		Version:       version.Version,
		Device:        h.config.Remote.Device,
		Endpoint:      h.config.ServerHost(),
		HostID:        h.hostID,
		DisplayServer: h.displayServer(),
		Uptime:        utils.FormatDuration(time.Since(h.startedAt)),
		Poll: pollStatus{
			ActiveInterval: h.config.Poll.ActiveInterval.String(),
			IdleInterval:   h.config.Poll.IdleInterval.String(),
			IdleThreshold:  h.config.Poll.IdleEnterThreshold.String(),
		},
		OfflineOnExit: h.config.Report.OfflineOnExit,
		Sinks:         h.stats.Stats(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Error encoding JSON")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
