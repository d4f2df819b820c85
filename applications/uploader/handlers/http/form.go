package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/donmikel/uploadform/applications/uploader"
	"github.com/donmikel/uploadform/applications/uploader/domain"
)

const maxFileSize = 100 << 20

func NewRouter(svc uploader.FormService, gatherer prometheus.Gatherer, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", FormHandler(svc, logger)).Methods(http.MethodGet)
	r.HandleFunc("/file", SelectFileHandler(svc, logger)).Methods(http.MethodPost)
	r.HandleFunc("/submit", SubmitHandler(svc)).Methods(http.MethodPost)
	r.HandleFunc("/state", StateHandler(svc, logger)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func FormHandler(svc uploader.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := formTemplate.Execute(w, newFormView(svc.Snapshot())); err != nil {
			level.Error(logger).Log("msg", "can't render form", "err", err)
		}
	}
}

// SelectFileHandler takes the picked file from the "file" form field. An
// empty pick leaves the current selection untouched.
func SelectFileHandler(svc uploader.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize)

		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			redirectToForm(w, r)
			return
		}
		if err != nil {
			level.Error(logger).Log("msg", "FormFile error",
				"err", err,
			)
			writeErr(w, err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			level.Error(logger).Log("msg", "can't read picked file",
				"err", err,
			)
			writeErr(w, err, http.StatusInternalServerError)
			return
		}

		svc.SelectFile(domain.NewMemoryBlob(header.Filename, data))
		redirectToForm(w, r)
	}
}

// SubmitHandler blocks until the submission settles. Submitting with no
// file or while another upload is in flight is silently ignored.
func SubmitHandler(svc uploader.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Submit(r.Context())
		redirectToForm(w, r)
	}
}

type outcomeResponse struct {
	Type    domain.OutcomeType `json:"type"`
	Message string             `json:"message"`
}

type stateResponse struct {
	File      string           `json:"file,omitempty"`
	Size      int64            `json:"size,omitempty"`
	State     string           `json:"state"`
	CanSubmit bool             `json:"can_submit"`
	Outcome   *outcomeResponse `json:"outcome,omitempty"`
}

func newStateResponse(s domain.Snapshot) stateResponse {
	resp := stateResponse{
		State:     s.State.String(),
		CanSubmit: s.CanSubmit(),
	}
	if s.File != nil {
		resp.File = s.File.Name()
		resp.Size = s.File.Size()
	}
	if s.Outcome != nil {
		resp.Outcome = &outcomeResponse{Type: s.Outcome.Type, Message: s.Outcome.Message}
	}

	return resp
}

func StateHandler(svc uploader.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(newStateResponse(svc.Snapshot())); err != nil {
			level.Error(logger).Log("msg", "can't encode state", "err", err)
		}
	}
}

func redirectToForm(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeErr(w http.ResponseWriter, err error, status int) {
	w.WriteHeader(status)
	_, err = w.Write([]byte(err.Error()))
	if err != nil {
		fmt.Println("can't write response ", err)
	}
}
