package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

// interruptedRunWriteGrace bounds the wait for interrupted runs to record their failure.
const interruptedRunWriteGrace = 15 * time.Second

var cliIdentity = model.Identity{Subject: "cli", Roles: []string{model.RoleAdmin}}

type ServiceCtx struct {
	deps            *dependencies
	extraOptions    []DependencyOption
	logOutput       io.Writer
	shutdownChannel chan os.Signal
	serverCtx       context.Context
	serverStopFunc  context.CancelFunc
	serverReady     chan struct{}
	serverErrors    chan error
}

func New(opts ...ServiceOption) *ServiceCtx {
	ctx := &ServiceCtx{
		shutdownChannel: make(chan os.Signal, 1),
		serverErrors:    make(chan error, 2),
	}

	for _, opt := range opts {
		opt(ctx)
	}

	return ctx
}

// Run serves the API until a termination signal or a server failure, then shuts down gracefully.
func (c *ServiceCtx) Run() error {
	if err := c.build(serveOptions()); err != nil {
		return err
	}

	c.shutdownHook()
	c.startService()
	c.monitorConfigChanges()

	var runErr error

	// Waits for one of the following shutdown conditions to happen.
	select {
	case <-c.serverCtx.Done():
	case sig := <-c.shutdownChannel:
		c.deps.infra.logger.Info().Str("signal", sig.String()).Msg("termination signal received")
	case runErr = <-c.serverErrors:
		c.deps.infra.logger.Error().Err(runErr).Msg("http server failed")
	}

	c.shutdown()

	return runErr
}

// RunOnce executes a single run in-process and returns its terminal record.
// Cancelling ctx interrupts the run, which then ends failed.
func (c *ServiceCtx) RunOnce(ctx context.Context, settings model.RunSettings) (*model.HealthCheckRun, error) {
	c.serverCtx, c.serverStopFunc = context.WithCancel(ctx)
	defer c.serverStopFunc()

	if err := c.build(coreOptions()); err != nil {
		return nil, err
	}

	defer c.deps.cleanup(context.WithoutCancel(ctx))

	runService := c.deps.services.runService

	id, err := runService.StartRun(c.serverCtx, settings, cliIdentity)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	c.deps.infra.logger.Info().Str("run_id", id.String()).Msg("run started")

	run, waitErr := runService.WaitFor(c.serverCtx, id, c.deps.config.Watch.PollInterval)
	if waitErr == nil {
		return run, nil
	}

	// the interrupted run still records its failure, report that record
	graceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interruptedRunWriteGrace)
	defer cancel()

	if err := runService.Wait(graceCtx); err != nil {
		return nil, errors.Join(waitErr, err)
	}

	run, err = runService.GetRun(graceCtx, id)
	if err != nil {
		return nil, errors.Join(waitErr, err)
	}

	return run, nil
}

func (c *ServiceCtx) build(opts []DependencyOption) error {
	if c.serverCtx == nil {
		c.serverCtx, c.serverStopFunc = context.WithCancel(context.Background())
	}

	opts = append(opts, c.extraOptions...)
	if c.logOutput != nil {
		opts = append([]DependencyOption{withLogOutput(c.logOutput)}, opts...)
	}

	deps, err := initializeDependencies(c.serverCtx, opts...)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	c.deps = deps

	return nil
}

func (c *ServiceCtx) startService() {
	var ready sync.WaitGroup

	c.serve(&ready, "public", c.deps.infra.publicHTTPServer)
	c.serve(&ready, "admin", c.deps.infra.adminHTTPServer)

	if c.serverReady != nil {
		go func() {
			ready.Wait()
			close(c.serverReady)
		}()
	}
}

func (c *ServiceCtx) serve(ready *sync.WaitGroup, name string, server *http.Server) {
	if server == nil {
		return
	}

	ready.Add(1)

	go func() {
		listener, err := net.Listen("tcp", server.Addr)
		ready.Done()

		if err != nil {
			c.serverErrors <- fmt.Errorf("failed to listen on %s for the %s server: %w", server.Addr, name, err)

			return
		}

		c.deps.infra.logger.Info().
			Str("address", listener.Addr().String()).
			Str("server", name).
			Msg("starting the http server")

		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.serverErrors <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
}

func (c *ServiceCtx) monitorConfigChanges() {
	if c.deps.configLoader == nil {
		return
	}

	reloadErrors := c.deps.configLoader.WatchConfigSignals(c.serverCtx)
	go func() {
		for err := range reloadErrors {
			if err != nil {
				c.deps.infra.logger.Error().Err(err).Msg("config reload failed")
			} else {
				c.deps.infra.logger.Info().Msg("config reloaded successfully")
			}
		}
	}()
}

func (c *ServiceCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

// shutdown drains the servers first, then gives in-flight runs the configured
// grace before interrupting them, and finally releases the infrastructure.
func (c *ServiceCtx) shutdown() {
	log := c.deps.infra.logger
	log.Info().Msg("shutting down service...")

	signal.Stop(c.shutdownChannel)

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), c.deps.config.PublicHTTPServer.ShutdownTimeout)
	defer cancelHTTP()

	for name, server := range map[string]*http.Server{
		"public": c.deps.infra.publicHTTPServer,
		"admin":  c.deps.infra.adminHTTPServer,
	} {
		if server == nil {
			continue
		}

		if err := server.Shutdown(httpCtx); err != nil {
			log.Error().Err(err).Str("server", name).Msg("failed to drain the http server")
		}
	}

	runService := c.deps.services.runService

	graceCtx, cancelGrace := context.WithTimeout(context.Background(), c.deps.config.Orchestrator.ShutdownGrace)
	defer cancelGrace()

	if err := runService.Wait(graceCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight runs outlived the shutdown grace, interrupting them")
	}

	// Cancel context that underlying processes would start cleanup.
	c.serverStopFunc()

	interruptCtx, cancelInterrupt := context.WithTimeout(context.Background(), interruptedRunWriteGrace)
	defer cancelInterrupt()

	if err := runService.Wait(interruptCtx); err != nil {
		log.Error().Err(err).Msg("interrupted runs did not record their failure in time")
	}

	c.cleanup(interruptCtx)

	log.Info().Msg("service shutdown complete")
}

// WaitForServer blocks until the http servers are listening.
// If you want to be notified when the servers are running,
// make sure you instantiate the service with WithWaitingForServer.
//
// Example:
//
//	srv := runtime.New(runtime.WithWaitingForServer())
//	go func() {
//		_ = srv.Run()
//	}()
//
//	srv.WaitForServer()
func (c *ServiceCtx) WaitForServer() {
	if c.serverReady != nil {
		<-c.serverReady
	}
}

func (c *ServiceCtx) cleanup(ctx context.Context) {
	c.deps.infra.logger.Info().Msg("cleaning up resources...")
	c.deps.cleanup(ctx)
	c.deps.infra.logger.Info().Msg("cleanup completed")
}
