package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-agent/internal/workflow"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/project", getProjectHandler(cfg))
		r.Put("/project/name", setProjectNameHandler(cfg))
		r.Post("/project/reset", resetProjectHandler(cfg))
		r.Post("/project/videos", addVideosHandler(cfg))
		r.Delete("/project/videos/{id}", removeVideoHandler(cfg))
		r.Patch("/project/videos/{id}", setClipNameHandler(cfg))
		r.Post("/transcribe", transcribeHandler(cfg))
		r.Post("/script", generateScriptHandler(cfg))
		r.Post("/script/segments/{index}/toggle", toggleSegmentHandler(cfg))
		r.Put("/script/text", setFullTextHandler(cfg))
		r.Post("/export", exportHandler(cfg))
		r.Get("/activity", activityHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			AgentID: cfg.AgentID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Engine.Status())
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Engine.Snapshot()))
	}
}

func setProjectNameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetProjectNameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Engine.SetProjectName(req.Name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func resetProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Engine.ResetProject()
		w.WriteHeader(http.StatusNoContent)
	}
}

func addVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddVideosRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Paths) == 0 {
			WriteError(w, http.StatusBadRequest, "paths is required", "BAD_REQUEST")
			return
		}

		res := cfg.Engine.AddVideos(req.Paths)

		resp := AddVideosResponse{
			Added:   make([]VideoResponse, len(res.Added)),
			Skipped: res.Skipped,
		}
		for i, v := range res.Added {
			resp.Added[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func removeVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "video id required", "BAD_REQUEST")
			return
		}

		if err := cfg.Engine.RemoveVideo(id); err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setClipNameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req SetClipNameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Engine.SetClipName(id, req.ClipName); err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func transcribeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Engine.Transcribe(r.Context()); err != nil {
			writeEngineError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Engine.Snapshot()))
	}
}

func generateScriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateScriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Engine.GenerateScript(r.Context(), req.Prompt, req.TargetMinutes); err != nil {
			writeEngineError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Engine.Snapshot()))
	}
}

func toggleSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid segment index", "BAD_REQUEST")
			return
		}

		if err := cfg.Engine.ToggleSegment(index); err != nil {
			writeEngineError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Engine.Snapshot()))
	}
}

func setFullTextHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetFullTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Engine.SetFullText(req.FullText); err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := cfg.Engine.Export(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.WriteHeader(http.StatusOK)
		w.Write(res.Data)
	}
}

func activityHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, TrailToResponse(cfg.Engine.Snapshot().Trail))
	}
}

// writeEngineError maps engine errors to HTTP responses: gating
// violations are client errors, busy guards conflict, and
// collaborator failures surface as bad gateway.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrTranscriptionInProgress),
		errors.Is(err, workflow.ErrGenerationInProgress),
		errors.Is(err, workflow.ErrExportInProgress):
		WriteError(w, http.StatusConflict, err.Error(), "BUSY")
	case errors.Is(err, workflow.ErrNoVideos),
		errors.Is(err, workflow.ErrEmptyPrompt),
		errors.Is(err, workflow.ErrNoTranscriptions),
		errors.Is(err, workflow.ErrNoScript):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, workflow.ErrVideoNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, workflow.ErrVideoSetChanged):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	default:
		// Everything else came back from a collaborator call.
		WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
	}
}
