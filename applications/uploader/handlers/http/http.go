package http

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donmikel/uploadform/applications/uploader"
	"github.com/donmikel/uploadform/applications/uploader/config"
)

func NewHTTPServer(conf config.Api, formService uploader.FormService, gatherer prometheus.Gatherer, logger log.Logger) *http.Server {
	mux := NewRouter(formService, gatherer, logger)
	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: mux,
	}
}
