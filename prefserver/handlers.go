package prefserver

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"cine-match/llm"
	"cine-match/logging"
	"cine-match/preferences"
)

type SaveRequest struct {
	Responses []llm.Response `json:"responses" validate:"required,dive"`
}

type KeywordsResponse struct {
	QuestionsAndKeywords []preferences.Answer `json:"questionsAndKeywords"`
}

type DataResponse struct {
	Data json.RawMessage `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "cine-match preference API is working!")
}

func (s *Server) handleSaveResponses(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body. Expecting 'responses' array.")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			logging.Debug().Str("field", verrs[0].Namespace()).Str("tag", verrs[0].Tag()).Msg("Rejected responses")
		}
		writeError(w, http.StatusBadRequest, "Invalid request body. Expecting 'responses' array.")
		return
	}

	keywords, source, err := s.extractor.Extract(r.Context(), req.Responses)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to extract keywords")
		writeError(w, http.StatusInternalServerError, "Failed to process responses.")
		return
	}

	s.mu.Lock()
	s.keywords = keywords
	s.mu.Unlock()

	logging.Info().Int("responses", len(req.Responses)).Str("source", source).Msg("Saved responses")
	writeJSON(w, http.StatusOK, KeywordsResponse{QuestionsAndKeywords: keywords})
}

func (s *Server) handleGetResponses(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	keywords := s.keywords
	s.mu.RUnlock()

	if len(keywords) == 0 {
		writeError(w, http.StatusNotFound, "No responses found. Please save responses first.")
		return
	}
	writeJSON(w, http.StatusOK, KeywordsResponse{QuestionsAndKeywords: keywords})
}

func (s *Server) handleClearResponses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.keywords = nil
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Responses cleared."})
}

func (s *Server) handlePostData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input. Expected an array.")
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "Invalid input. Expected an array.")
		return
	}

	s.mu.Lock()
	s.data = json.RawMessage(body)
	s.mu.Unlock()

	logging.Info().Int("bytes", len(body)).Msg("Stored recommendations")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Data received and stored successfully."})
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, DataResponse{Data: data})
}
