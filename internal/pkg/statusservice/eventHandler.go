package statusservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/messages"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/airenas/meetscribe/internal/pkg/utils/handler"
	"github.com/vgarvardt/gue/v5"
)

// HandlerData keeps data required for handler
type HandlerData struct {
	GueClient   *gue.Client
	WorkerCount int
	Reader      Reader
	WSHandler   WSConnHandler
}

// StartStatusHandler starts the event queue listener for status events
// returns channel for tracking if all jobs are finished
func StartStatusHandler(ctx context.Context, data *HandlerData) (<-chan struct{}, error) {
	if err := validateHandler(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Msg("Starting listen for messages")

	wm := gue.WorkMap{
		messages.StatusChange: handler.Create(data, handleStatus, handler.DefaultOpts[messages.RecordingMessage]().
			WithFailure(handler.NoRetry[messages.RecordingMessage]()).WithTimeout(time.Second*30)),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.StatusChange),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("status-worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

func handleStatus(ctx context.Context, m *messages.RecordingMessage, data *HandlerData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("status", m.Status).Msg("handling status change event")

	conns, found := data.WSHandler.GetConnections(m.ID)
	if !found {
		goapp.Log.Debug().Str("ID", m.ID).Msg("no connections found")
		return nil
	}
	rec, err := data.Reader.Get(ctx, m.ID)
	if errors.Is(err, utils.ErrNotFound) {
		goapp.Log.Warn().Str("ID", m.ID).Msg("recording gone")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot get recording %s: %w", m.ID, err)
	}
	res := mapStatus(rec)
	for _, c := range conns {
		if err := sendMsg(c, res); err != nil {
			goapp.Log.Error().Err(err).Send()
		}
	}
	return nil
}

// NewCurrentStatusSender returns SubscribeFunc sending the stored status to a new subscriber
func NewCurrentStatusSender(reader Reader, timeout time.Duration) SubscribeFunc {
	return func(conn WsConn, id string) {
		ctx, cf := context.WithTimeout(context.Background(), timeout)
		defer cf()
		rec, err := reader.Get(ctx, id)
		if err != nil {
			goapp.Log.Warn().Err(err).Str("ID", goapp.Sanitize(id)).Msg("can't load status")
			if errors.Is(err, utils.ErrNotFound) {
				_ = sendMsg(conn, &statusResult{ID: id, Status: "not_found", Error: "unknown ID"})
			}
			return
		}
		if err := sendMsg(conn, mapStatus(rec)); err != nil {
			goapp.Log.Error().Err(err).Send()
		}
	}
}

func sendMsg(c WsConn, res *statusResult) error {
	goapp.Log.Debug().Str("ID", res.ID).Msg("Sending result to websocket")
	if err := c.WriteJSON(res); err != nil {
		return fmt.Errorf("cannot write to websocket: %w", err)
	}
	return nil
}

func validateHandler(data *HandlerData) error {
	if data == nil {
		return fmt.Errorf("no data")
	}
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.Reader == nil {
		return fmt.Errorf("no recordings reader")
	}
	if data.WSHandler == nil {
		return fmt.Errorf("no WSHandler")
	}
	return nil
}
