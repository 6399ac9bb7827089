package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/marketplace"
	"github.com/emergent/skillsmarket/pkg/store"
	"github.com/emergent/skillsmarket/pkg/version"
)

const maxJSONBody = 1 << 20

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// RateRequest is the body of POST /api/skills/{id}/rate.
type RateRequest struct {
	Rating int `json:"rating" jsonschema:"minimum=1,maximum=5"`
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
	})
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.SkillFilter{
		Search:   query.Get("search"),
		Category: query.Get("category"),
	}
	if raw := query.Get("isGlobal"); raw != "" {
		isGlobal, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "isGlobal must be true or false")
			return
		}
		filter.IsGlobal = &isGlobal
	}

	skills, err := s.service.ListSkills(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, nonNil(skills))
}

// handleCreateSkill handles POST /api/skills
func (s *Server) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var in marketplace.CreateSkillInput
	if !decode(w, r, s.maxUploadBody(), &in) {
		return
	}

	skill, err := s.service.CreateSkill(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, skill)
}

// handleGetSkill handles GET /api/skills/{id}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := s.service.GetSkill(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, skill)
}

// handleDownloadSkill handles GET /api/skills/{id}/download
func (s *Server) handleDownloadSkill(w http.ResponseWriter, r *http.Request) {
	download, err := s.service.DownloadSkill(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, download)
}

// handleRateSkill handles POST /api/skills/{id}/rate
func (s *Server) handleRateSkill(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if !decode(w, r, maxJSONBody, &req) {
		return
	}

	skill, err := s.service.RateSkill(r.Context(), mux.Vars(r)["id"], req.Rating)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, skill)
}

// handleForkSkill handles POST /api/skills/{id}/fork
func (s *Server) handleForkSkill(w http.ResponseWriter, r *http.Request) {
	var in marketplace.ForkInput
	if !decode(w, r, maxJSONBody, &in) {
		return
	}

	skill, err := s.service.ForkSkill(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, skill)
}

// handleListAgents handles GET /api/agents
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.service.ListAgents(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, nonNil(agents))
}

// handleGetAgent handles GET /api/agents/{id}
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.service.GetAgent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, agent)
}

// handleListRules handles GET /api/rules
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.ListRules(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, nonNil(rules))
}

// handleGetRule handles GET /api/rules/{id}
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.service.GetRule(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, rule)
}

// decode reads and validates a JSON body into v, writing a 400 on failure.
func decode[T any](w http.ResponseWriter, r *http.Request, maxBytes int64, v *T) bool {
	err := decodeBody(r, maxBytes, v)
	if err == nil {
		return true
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, r, http.StatusBadRequest, reqErr.msg)
	} else {
		writeServiceError(w, r, err)
	}
	return false
}

// maxUploadBody bounds a JSON body carrying base64 file content.
func (s *Server) maxUploadBody() int64 {
	return s.config.Limits.MaxTotal*4/3 + maxJSONBody
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
