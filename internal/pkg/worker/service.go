package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/messages"
	"github.com/airenas/meetscribe/internal/pkg/pipeline"
	tapi "github.com/airenas/meetscribe/internal/pkg/transcriber/api"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/airenas/meetscribe/internal/pkg/utils/handler"
	"github.com/vgarvardt/gue/v5"
)

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// Filer retrieves uploaded media
type Filer interface {
	LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error)
}

// Runner processes one recording
type Runner interface {
	Run(ctx context.Context, job *pipeline.Job) error
	Abort(ctx context.Context, id string, cause error) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	Filer       Filer
	Runner      Runner
	// Timeout bounds one job run, includes all pipeline stages
	Timeout time.Duration
	Retries int32
	Testing bool
}

const (
	defaultTimeout = time.Hour * 2
	defaultRetries = 3
)

// StartWorkerService starts the event queue listener service to listen for events
// returns channel for tracking if all jobs are finished
func StartWorkerService(ctx context.Context, data *ServiceData) (<-chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Dur("timeout", data.Timeout).Msg("Starting listen for messages")
	if data.Testing {
		goapp.Log.Warn().Msg("SERVICE IN TEST MODE")
	}

	wm := gue.WorkMap{
		messages.Work: handler.Create(data, handleProcess, handler.DefaultOpts[messages.ProcessMessage]().
			WithFailure(abortOnFailure(data)).WithTimeout(data.Timeout).
			WithBackoff(handler.DefaultBackoffOrTest(data.Testing))),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.Work),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("meetscribe-worker"),
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

func handleProcess(ctx context.Context, m *messages.ProcessMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("file", m.StoragePath).Msg("handling")
	media, err := loadMedia(ctx, m, data)
	if err != nil {
		return err
	}
	if err := data.Runner.Run(ctx, &pipeline.Job{ID: m.ID, MediaURL: m.MediaURL, Media: media}); err != nil {
		if dropErr(err) {
			goapp.Log.Error().Err(err).Str("ID", m.ID).Msg("drop")
			return nil
		}
		return fmt.Errorf("can't run pipeline: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Msg("done")
	return nil
}

// dropErr reports errors a retry can't fix: a bad job, a recording already processed or deleted
func dropErr(err error) bool {
	return utils.IsValidation(err) || errors.Is(err, utils.ErrWrongTransition) || errors.Is(err, utils.ErrNotFound)
}

func loadMedia(ctx context.Context, m *messages.ProcessMessage, data *ServiceData) (*tapi.Media, error) {
	if m.StoragePath == "" {
		return nil, fmt.Errorf("no storage path")
	}
	f, err := data.Filer.LoadFile(ctx, m.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("can't load media: %w", err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("can't read media: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Int("bytes", len(b)).Msg("loaded media")
	return &tapi.Media{Name: m.FileName, ContentType: m.ContentType, Data: b}, nil
}

// abortOnFailure retries the job, after the last retry the recording is marked as failed
func abortOnFailure(data *ServiceData) handler.FailureFunc[messages.ProcessMessage] {
	retry := handler.RetryFailure[messages.ProcessMessage](data.Retries)
	return func(ctx context.Context, m *messages.ProcessMessage, err error, j *gue.Job) (bool, time.Duration, error) {
		again, delay, errR := retry(ctx, m, err, j)
		if again || errR != nil {
			return again, delay, errR
		}
		if err := data.Runner.Abort(ctx, m.ID, err); err != nil {
			return false, 0, fmt.Errorf("can't abort: %w", err)
		}
		return false, 0, nil
	}
}

func validate(data *ServiceData) error {
	if data == nil {
		return fmt.Errorf("no data")
	}
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.Filer == nil {
		return fmt.Errorf("no Filer")
	}
	if data.Runner == nil {
		return fmt.Errorf("no Runner")
	}
	if data.Timeout < 0 {
		return fmt.Errorf("wrong timeout %s", data.Timeout)
	}
	if data.Timeout == 0 {
		data.Timeout = defaultTimeout
	}
	if data.Retries < 0 {
		return fmt.Errorf("wrong retries %d", data.Retries)
	}
	if data.Retries == 0 {
		data.Retries = defaultRetries
	}
	return nil
}
