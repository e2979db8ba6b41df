package server

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/scheduler"
	"github.com/aristath/valuescope/internal/system"
)

// SystemHandlers handles data directory and job endpoints
type SystemHandlers struct {
	system    *system.Service
	jobs      map[string]scheduler.Job
	scheduler *scheduler.Scheduler
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. sched may be nil, in which case
// triggered jobs run directly.
func NewSystemHandlers(svc *system.Service, jobs map[string]scheduler.Job, sched *scheduler.Scheduler, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		system:    svc,
		jobs:      jobs,
		scheduler: sched,
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
}

// HandleDataInfo handles GET /api/system/data
func (h *SystemHandlers) HandleDataInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.system.Info(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get data info")
		writeError(w, http.StatusInternalServerError, "Failed to get data info", h.log)
		return
	}
	writeJSON(w, http.StatusOK, info, h.log)
}

// HandleClearData handles DELETE /api/system/data
func (h *SystemHandlers) HandleClearData(w http.ResponseWriter, r *http.Request) {
	result, err := h.system.ClearAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to clear data")
		writeError(w, http.StatusInternalServerError, "Failed to clear data", h.log)
		return
	}

	h.log.Info().Int64("settings", result.Settings).Msg("Local data cleared")
	writeJSON(w, http.StatusOK, result, h.log)
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"jobs": names}, h.log)
}

// HandleRunJob handles POST /api/system/jobs/{name}. The job runs in the
// background; the response only confirms it was started.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown job: "+name, h.log)
		return
	}

	go func() {
		var err error
		if h.scheduler != nil {
			err = h.scheduler.RunNow(job)
		} else {
			err = job.Run()
		}
		if err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job":     name,
		"started": true,
	}, h.log)
}
