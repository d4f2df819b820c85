package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/uploadform/applications/uploader"
	"github.com/donmikel/uploadform/applications/uploader/adapters/httptransport"
	"github.com/donmikel/uploadform/applications/uploader/adapters/inmemory"
	"github.com/donmikel/uploadform/applications/uploader/config"
	"github.com/donmikel/uploadform/applications/uploader/domain"
	"github.com/donmikel/uploadform/applications/uploader/handlers/http"
	"github.com/donmikel/uploadform/applications/uploader/interfaces"
	"github.com/donmikel/uploadform/applications/uploader/metrics"
	"github.com/donmikel/uploadform/applications/uploader/services"
)

// exitCode is a process termination code.
type exitCode int

// Possible process termination codes are listed below.
const (
	// exitSuccess is code for successful program termination.
	exitSuccess exitCode = 0
	// exitFailure is code for unsuccessful program termination.
	exitFailure exitCode = 1
)

// Kubernetes (rolling update) doesn't wait until a pod is out of rotation before sending SIGTERM,
// and external LB could still route traffic to a non-existing pod resulting in a surge of 50x API errors.
// It's recommended to wait for 5 seconds before terminating the program; see references
// https://github.com/kubernetes-retired/contrib/issues/1140, https://youtu.be/me5iyiheOC8?t=1797.
const preStopWait = 5 * time.Second

// Shutdown timeout for http servers. An upload in flight keeps its request
// open, so this is longer than a typical API shutdown.
const shutdownTimeout = 30 * time.Second

var (
	// version is the service version from git tag.
	version = ""
)

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
// When we call os.Exit defer statements do not run resulting in unclean process shutdown.
// nolint
func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	endpoint := fs.String("endpoint", "", "upload endpoint URL, overrides endpoint.url from the config")
	filePath := fs.String("file", "", "upload this file once and exit instead of serving the form")
	dryRun := fs.Bool("dry-run", false, "keep uploads in memory instead of posting them")
	v := fs.Bool("v", false, "Show version")

	err := fs.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		return exitSuccess
	}
	if err != nil {
		logger.Log("msg", "parsing cli flags failed", "err", err)
		return exitFailure
	}

	if *v {
		if version == "" {
			level.Error(logger).Log("msg", "version not set")
		} else {
			level.Info(logger).Log("version", version)
		}

		return exitSuccess
	}

	logger.Log("configPath", *configPath)

	cfg, err := loadConfig(*configPath, *endpoint, *filePath != "")
	if err != nil {
		logger.Log("msg", "cannot load service config", "err", err)
		return exitFailure
	}

	err = validateConfig(cfg, *filePath != "", *dryRun)
	if err != nil {
		logger.Log("msg", "config validation failed", "err", err)
		return exitFailure
	}

	// It's nice to be able to see panics in Logs, hence we monitor for panics after
	// logger has been bootstrapped.
	defer monitorPanic(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	uploadMetrics := metrics.New(registry)

	var transport interfaces.Transport
	{
		if *dryRun {
			transport = inmemory.NewTransport(logger)
		} else {
			transport = httptransport.NewTransport(cfg.Endpoint.URL, cfg.Endpoint.Timeout, logger)
		}
		transport = uploadMetrics.InstrumentTransport(transport)
	}

	var formService uploader.FormService
	{
		formService = services.NewService(transport, logger)
		formService.Subscribe(uploadMetrics.Observe)
	}

	if *filePath != "" {
		return uploadOnce(formService, *filePath, logger)
	}

	return serve(cfg, formService, registry, logger)
}

// loadConfig reads the config file if one is given and applies the endpoint
// override. The one-shot mode may run on flags alone.
func loadConfig(path, endpoint string, oneShot bool) (config.Uploader, error) {
	var (
		cfg config.Uploader
		err error
	)

	if path != "" || !oneShot {
		cfg, err = config.Parse(path)
		if err != nil {
			return cfg, err
		}
	}

	if endpoint != "" {
		cfg.Endpoint.URL = endpoint
	}

	return cfg, nil
}

// validateConfig skips the parts of the config a mode doesn't use: the
// one-shot mode serves nothing and the dry-run mode posts nowhere.
func validateConfig(cfg config.Uploader, oneShot, dryRun bool) error {
	if !oneShot {
		if err := cfg.API.Validate(); err != nil {
			return err
		}
	}

	if !dryRun {
		return cfg.Endpoint.Validate()
	}

	return nil
}

func uploadOnce(formService uploader.FormService, path string, logger log.Logger) exitCode {
	file, err := domain.NewLocalBlob(path)
	if err != nil {
		level.Error(logger).Log("msg", "can't select file", "err", err)
		return exitFailure
	}

	formService.SelectFile(file)
	formService.Submit(context.Background())

	outcome := formService.Snapshot().Outcome
	if outcome == nil {
		return exitFailure
	}

	fmt.Println(outcome.Message)
	if outcome.Type != domain.OutcomeSuccess {
		return exitFailure
	}

	return exitSuccess
}

func serve(cfg config.Uploader, formService uploader.FormService, registry *prometheus.Registry, logger log.Logger) exitCode {
	hServer := http.NewHTTPServer(cfg.API, formService, registry, logger)

	group, ctx := errgroup.WithContext(context.Background())
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			level.Info(logger).Log("msg", fmt.Sprintf("signal received (waiting %v before terminating): %v", preStopWait, s))
			time.Sleep(preStopWait)
			level.Info(logger).Log("msg", "terminating...")

			return fmt.Errorf("signal received: %s", s)
		}
	})

	group.Go(func() error {
		level.Info(logger).Log("msg", "serving upload form", "addr", cfg.API.HTTPAddr)
		if err := hServer.ListenAndServe(); err != nil {
			return fmt.Errorf("listen and server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "graceful shutdown of server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		return ctx.Err()
	})

	if err := group.Wait(); err != nil {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return exitFailure
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return exitSuccess
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
