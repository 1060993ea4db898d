package handlers

import (
	"net/http"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases/queries"
	"github.com/gorilla/websocket"
)

const (
	closeReasonTerminal = "run reached a terminal state"
	closeReasonFailure  = "run could not be read"
	closeReasonShutdown = "server shutting down"
)

type (
	WatchHandler struct {
		app          *usecases.WebApplication
		upgrader     websocket.Upgrader
		pollInterval time.Duration
		writeTimeout time.Duration
		logger       logger.Logger
	}

	// snapshotKey changes whenever a client-visible part of the run moves.
	snapshotKey struct {
		status   model.RunStatus
		progress int
		probe    model.ProbeName
		results  int
	}
)

func NewWatchHandler(app *usecases.WebApplication, pollInterval, writeTimeout time.Duration, log logger.Logger) *WatchHandler {
	return &WatchHandler{
		app: app,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeTimeout,
		},
		pollInterval: pollInterval,
		writeTimeout: writeTimeout,
		logger:       log.Named("watch_handler"),
	}
}

// Watch handles GET /health-checks/watch?id=. The run is resolved before the
// upgrade so unknown ids still get a plain 404. Afterwards a snapshot is pushed
// whenever the run changes and the socket closes once the run is terminal.
func (h *WatchHandler) Watch(w http.ResponseWriter, r *http.Request) {
	runID, err := model.ParseRunID(r.URL.Query().Get("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	run, err := h.fetch(r, runID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the client
		reqLog := h.logger.WithContext(r.Context())
		reqLog.Debug().Err(err).Msg("websocket upgrade failed")

		return
	}
	defer conn.Close()

	log := h.logger.WithContext(logger.WithRunID(r.Context(), runID.String()))

	clientGone := make(chan struct{})

	go func() {
		defer close(clientGone)

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var last snapshotKey

	for {
		if key := keyOf(run); key != last {
			if err := h.send(conn, run); err != nil {
				log.Debug().Err(err).Msg("watch client write failed")

				return
			}

			last = key
		}

		if run.Status.IsTerminal() {
			h.close(conn, websocket.CloseNormalClosure, closeReasonTerminal)

			return
		}

		select {
		case <-clientGone:
			return
		case <-r.Context().Done():
			h.close(conn, websocket.CloseGoingAway, closeReasonShutdown)

			return
		case <-ticker.C:
		}

		run, err = h.fetch(r, runID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to refresh watched run")
			h.close(conn, websocket.CloseInternalServerErr, closeReasonFailure)

			return
		}
	}
}

func (h *WatchHandler) fetch(r *http.Request, id model.RunID) (*model.HealthCheckRun, error) {
	return h.app.Queries.GetRun.Execute(r.Context(), queries.GetRunQuery{ID: id})
}

func (h *WatchHandler) send(conn *websocket.Conn, run *model.HealthCheckRun) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}

	return conn.WriteJSON(toHealthCheckRun(run))
}

func (h *WatchHandler) close(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(h.writeTimeout),
	)
}

func keyOf(run *model.HealthCheckRun) snapshotKey {
	return snapshotKey{
		status:   run.Status,
		progress: run.Progress,
		probe:    run.CurrentProbe,
		results:  len(run.Results),
	}
}
