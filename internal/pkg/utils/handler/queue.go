package handler

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/vgarvardt/gue/v5"
)

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// FailureFunc decides what to do with a failed job: retry or not, and after what delay.
// A returned error is logged, the job is dropped after maxHandlerFailures.
type FailureFunc[TM any] func(context.Context, *TM, error, *gue.Job) (bool, time.Duration, error)

// Opts for the queue handler
type Opts[TM any] struct {
	backoff        gue.Backoff
	timeout        time.Duration
	failureHandler FailureFunc[TM]
}

const maxHandlerFailures = 5

// Create helper func to wrap gue worker main func
func Create[TM any, SD any](data *SD, hf func(context.Context, *TM, *SD) error, opts *Opts[TM]) gue.WorkFunc {
	if opts == nil {
		goapp.Log.Panic().Msg("no opts provided")
	}
	return func(ctx context.Context, j *gue.Job) error {
		goapp.Log.Info().Str("queue", j.Queue).Str("type", j.Type).Int32("errCount", j.ErrorCount).Msg("got msg")

		var m TM
		err := json.Unmarshal(j.Args, &m)
		if err != nil {
			goapp.Log.Error().Err(err).Str("queue", j.Queue).Msg("can't unmarshal, drop")
			return nil
		}
		wrkCtx, cf := context.WithTimeout(ctx, opts.timeout)
		defer cf()
		err = hf(wrkCtx, &m, data)
		if err == nil {
			return nil
		}
		goapp.Log.Warn().Err(err).Str("queue", j.Queue).Str("type", j.Type).Msg("fail")
		retry, delay, errHandler := opts.failureHandler(ctx, &m, err, j)
		if errHandler != nil {
			goapp.Log.Error().Err(errHandler).Str("queue", j.Queue).Str("type", j.Type).Int32("errCount", j.ErrorCount).Send()
			if j.ErrorCount >= maxHandlerFailures {
				return nil
			}
			retry = true
		}
		if !retry {
			goapp.Log.Warn().Str("queue", j.Queue).Str("type", j.Type).Int32("errCount", j.ErrorCount).Msg("no retry")
			return nil
		}
		if delay == 0 {
			delay = opts.backoff(int(j.ErrorCount + 1))
		}
		goapp.Log.Info().Str("queue", j.Queue).Str("type", j.Type).Dur("after", delay).Msg("retry after")
		return gue.ErrRescheduleJobIn(delay, err.Error())
	}
}

// DefaultOpts returns opts with 15 min timeout and 3 retries
func DefaultOpts[TM any]() *Opts[TM] {
	return &Opts[TM]{timeout: time.Minute * 15, failureHandler: RetryFailure[TM](3), backoff: DefaultBackoff()}
}

// DefaultBackoff returns jittered linear backoff
func DefaultBackoff() gue.Backoff {
	return func(retries int) time.Duration {
		return fullJitter(time.Duration(retries) * time.Second * 10)
	}
}

// NoBackoff retries immediately
func NoBackoff() gue.Backoff {
	return func(retries int) time.Duration {
		return 0
	}
}

// DefaultBackoffOrTest returns NoBackoff for testing
func DefaultBackoffOrTest(test bool) gue.Backoff {
	if test {
		return NoBackoff()
	}
	return DefaultBackoff()
}

// WithFailure sets failure handler
func (o *Opts[TM]) WithFailure(failureHandler FailureFunc[TM]) *Opts[TM] {
	o.failureHandler = failureHandler
	return o
}

// WithTimeout sets timeout for one job run
func (o *Opts[TM]) WithTimeout(timeout time.Duration) *Opts[TM] {
	o.timeout = timeout
	return o
}

// WithBackoff sets retry backoff
func (o *Opts[TM]) WithBackoff(b gue.Backoff) *Opts[TM] {
	o.backoff = b
	return o
}

// RetryFailure retries a job until it failed more than n times
func RetryFailure[TM any](n int32) FailureFunc[TM] {
	return func(ctx context.Context, message *TM, err error, j *gue.Job) (bool, time.Duration, error) {
		if j.ErrorCount >= n {
			goapp.Log.Info().Str("queue", j.Queue).Str("type", j.Type).Int32("errCount", j.ErrorCount).Msg("retries exhausted")
			return false, 0, nil
		}
		return true, 0, nil
	}
}

// NoRetry never retries a job
func NoRetry[TM any]() FailureFunc[TM] {
	return func(ctx context.Context, message *TM, err error, j *gue.Job) (bool, time.Duration, error) {
		return false, 0, nil
	}
}

// fullJitter return randomized duration in interval [0, t)
// as suggested by https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func fullJitter(t time.Duration) time.Duration {
	return time.Duration(float64(t) * rand.Float64())
}
