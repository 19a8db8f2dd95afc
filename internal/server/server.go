package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"video-transcriber-go/internal/logger"
	"video-transcriber-go/internal/pipeline"
	"video-transcriber-go/internal/types"
)

// timePattern accepts H:MM:SS, HH:MM:SS and MM:SS clock strings.
var timePattern = regexp.MustCompile(`^(\d{1,2}:)?\d{1,2}:\d{2}$`)

// Server exposes the transcription pipeline over HTTP.
type Server struct {
	pipe *pipeline.Orchestrator
	log  *logger.Logger
}

func New(pipe *pipeline.Orchestrator, log *logger.Logger) *Server {
	return &Server{pipe: pipe, log: log.WithComponent("server")}
}

// Router builds the service's route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/transcribe", s.handleTranscribe).Methods(http.MethodPost)
	return r
}

// Handler wraps the route table with CORS for browser clients.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.AllowCredentials(),
	)(s.Router())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Video Transcriber API!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "transcribe")

	var req types.TranscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reqLog.WithError(err).Warn("bad request body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validate(req); err != nil {
		reqLog.WithError(err).Warn("request rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reqLog = reqLog.WithFields(logrus.Fields{
		"url":   req.VideoURL,
		"range": req.StartTime + " - " + req.EndTime,
	})
	reqLog.Info("transcription request received")

	res, err := s.pipe.Process(r.Context(), req)
	if err != nil {
		var perr *pipeline.Error
		status := http.StatusInternalServerError
		detail := "Unexpected processing error."
		if errors.As(err, &perr) {
			switch perr.Kind {
			case pipeline.KindBadInput:
				status = http.StatusBadRequest
				detail = perr.Error()
			case pipeline.KindFetch:
				status = http.StatusUnprocessableEntity
				detail = "Download failed: " + perr.Err.Error()
			case pipeline.KindUnavailable:
				status = http.StatusBadGateway
				detail = "Transcription service unavailable."
			case pipeline.KindInternal:
				status = http.StatusInternalServerError
				detail = "Processing failed."
			}
		}
		reqLog.WithError(err).WithField("status", status).Warn("pipeline failed")
		writeError(w, status, detail)
		return
	}

	reqLog.WithField("total_seconds", res.TotalSeconds).Info("transcription request finished")
	writeJSON(w, http.StatusOK, res)
}

// validate rejects malformed requests before the pipeline allocates any
// resources.
func validate(req types.TranscriptionRequest) error {
	u, err := url.Parse(req.VideoURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("video_url must be a valid http(s) URL")
	}

	start, err := parseClock(req.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %v", err)
	}
	end, err := parseClock(req.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %v", err)
	}
	if end <= start {
		return errors.New("end_time must be after start_time")
	}
	return nil
}

// parseClock converts MM:SS or HH:MM:SS to total seconds.
func parseClock(v string) (int, error) {
	if !timePattern.MatchString(v) {
		return 0, fmt.Errorf("%q is not a valid time (expected [HH:]MM:SS)", v)
	}
	parts := strings.Split(v, ":")
	total := 0
	for _, p := range parts {
		n, _ := strconv.Atoi(p)
		total = total*60 + n
	}
	return total, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
