package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/align"
	aapi "github.com/airenas/meetscribe/internal/pkg/analyzer/api"
	"github.com/airenas/meetscribe/internal/pkg/metrics"
	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/recording"
	"github.com/airenas/meetscribe/internal/pkg/status"
	tapi "github.com/airenas/meetscribe/internal/pkg/transcriber/api"
	"github.com/airenas/meetscribe/internal/pkg/utils"
)

const (
	stageTranscription = "Transcription"
	stageAnalysis      = "Analysis"

	failWriteTimeout = time.Second * 15
)

var errInterrupted = errors.New("processing interrupted during analysis")

type (
	// StateMachine writes recording field groups
	StateMachine interface {
		Get(ctx context.Context, id string) (*persistence.Recording, error)
		ApplyTranscription(ctx context.Context, id string, data *recording.Transcription) (*persistence.Recording, error)
		ApplyAnalysis(ctx context.Context, id string, data *recording.Analysis) (*persistence.Recording, error)
	}

	// Transcriber does speech to text
	Transcriber interface {
		Transcribe(ctx context.Context, media *tapi.Media) (*tapi.Result, error)
	}

	// Diarizer returns speaker segments
	Diarizer interface {
		Diarize(ctx context.Context, media *tapi.Media) ([]align.Segment, error)
	}

	// Analyzer summarizes the meeting
	Analyzer interface {
		Analyze(ctx context.Context, in *aapi.Input) (*aapi.Result, error)
	}

	// Notifier is informed after each status write
	Notifier interface {
		Notify(ctx context.Context, rec *persistence.Recording) error
	}

	// FileSaver stores result files
	FileSaver interface {
		SaveFile(ctx context.Context, name string, r io.Reader, size int64) error
	}
)

// Data holds the orchestrator collaborators. Diarizer, Analyzer, Notifier and Filer are optional
type Data struct {
	Machine              StateMachine
	Transcriber          Transcriber
	Diarizer             Diarizer
	Analyzer             Analyzer
	Notifier             Notifier
	Filer                FileSaver
	TranscriptionTimeout time.Duration
	AnalysisTimeout      time.Duration
}

// Job is one recording to process
type Job struct {
	ID       string
	MediaURL string
	Media    *tapi.Media
}

// Orchestrator runs transcription, alignment and analysis for one recording at a time.
// It is safe to call Run concurrently for different recordings.
type Orchestrator struct {
	data Data
}

// NewOrchestrator creates the orchestrator
func NewOrchestrator(data *Data) (*Orchestrator, error) {
	if data == nil {
		return nil, fmt.Errorf("no data")
	}
	if data.Machine == nil {
		return nil, fmt.Errorf("no state machine")
	}
	if data.Transcriber == nil {
		return nil, fmt.Errorf("no transcriber")
	}
	if data.TranscriptionTimeout < 0 || data.AnalysisTimeout < 0 {
		return nil, fmt.Errorf("wrong timeout")
	}
	if data.Diarizer == nil {
		goapp.Log.Warn().Msg("no diarizer, transcripts will have no speakers")
	}
	if data.Analyzer == nil {
		goapp.Log.Warn().Msg("no analyzer, analysis will be skipped")
	}
	return &Orchestrator{data: *data}, nil
}

// Run drives the recording from pending to a final status.
// Stage failures end up in the recording status, the returned error means
// the recording could not be written.
func (o *Orchestrator) Run(ctx context.Context, job *Job) (err error) {
	if job == nil || job.ID == "" {
		return utils.NewValidationError("id", "empty")
	}
	id := job.ID
	goapp.Log.Info().Str("ID", id).Str("media", job.MediaURL).Msg("pipeline start")
	rec, err := o.data.Machine.ApplyTranscription(ctx, id, &recording.Transcription{Status: status.Processing})
	if err != nil {
		if ok, errF := o.failInterrupted(ctx, id, err, errInterrupted); ok {
			return errF
		}
		return fmt.Errorf("can't start pipeline: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = o.fail(id, fmt.Errorf("unexpected: %v", r))
		}
	}()
	o.notify(ctx, rec)

	if err := o.run(ctx, job); err != nil {
		return o.fail(id, err)
	}
	return nil
}

// Abort marks a recording failed when its job can't be run at all, e.g. media is not loadable.
// A recording that has already moved on is left as is.
func (o *Orchestrator) Abort(ctx context.Context, id string, cause error) error {
	if id == "" {
		return utils.NewValidationError("id", "empty")
	}
	if cause == nil {
		cause = fmt.Errorf("aborted")
	}
	_, err := o.data.Machine.ApplyTranscription(ctx, id, &recording.Transcription{Status: status.Processing})
	if err != nil {
		if ok, errF := o.failInterrupted(ctx, id, err, cause); ok {
			return errF
		}
		if errors.Is(err, utils.ErrWrongTransition) || errors.Is(err, utils.ErrNotFound) {
			goapp.Log.Warn().Err(err).Str("ID", id).Msg("skip abort")
			return nil
		}
		return fmt.Errorf("can't abort: %w", err)
	}
	return o.fail(id, cause)
}

// failInterrupted marks failed a recording left in analyzing by a crashed or failed run.
// It returns false if the start write error is not about such a recording.
func (o *Orchestrator) failInterrupted(ctx context.Context, id string, startErr, cause error) (bool, error) {
	if !errors.Is(startErr, utils.ErrWrongTransition) {
		return false, nil
	}
	rec, err := o.data.Machine.Get(ctx, id)
	if err != nil {
		return true, fmt.Errorf("can't check status: %w", err)
	}
	if status.From(rec.Status) != status.Analyzing {
		return false, nil
	}
	goapp.Log.Warn().Str("ID", id).Msg("found interrupted analysis")
	return true, o.fail(id, cause)
}

func (o *Orchestrator) run(ctx context.Context, job *Job) error {
	id := job.ID
	tr, err := o.transcribe(ctx, job.Media)
	if err != nil {
		return utils.NewStageError(stageTranscription, err)
	}
	segments := o.diarize(ctx, id, job.Media)

	al, err := align.Align(&align.Transcript{Text: tr.Text, Words: tr.Words}, segments)
	if err != nil {
		return fmt.Errorf("can't align: %w", err)
	}
	metrics.RecordAlignment(al.Mode.String())
	if al.Mode.Degraded() {
		goapp.Log.Info().Str("ID", id).Str("mode", al.Mode.String()).Int("segments", len(segments)).
			Int("words", len(tr.Words)).Msg("alignment degraded")
	}

	rec, err := o.data.Machine.ApplyTranscription(ctx, id, &recording.Transcription{Status: status.Analyzing,
		Transcript: tr.Text, TranscriptWithSpeakers: al.Text, Duration: tr.Duration})
	if err != nil {
		return err
	}
	o.saveResults(ctx, id, tr.Text, al.Text)
	o.notify(ctx, rec)

	rec, err = o.data.Machine.ApplyAnalysis(ctx, id, o.analyze(ctx, id, tr.Text, al.Text))
	if err != nil {
		return err
	}
	metrics.RecordPipeline(status.Completed.String())
	goapp.Log.Info().Str("ID", id).Msg("pipeline completed")
	o.notify(ctx, rec)
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, media *tapi.Media) (*tapi.Result, error) {
	started := time.Now()
	res, err := call(ctx, o.data.TranscriptionTimeout, func(ctx context.Context) (*tapi.Result, error) {
		return o.data.Transcriber.Transcribe(ctx, media)
	})
	if err == nil && res == nil {
		err = fmt.Errorf("no result")
	}
	if err == nil && res.Error != "" {
		err = fmt.Errorf("%s", res.Error)
	}
	metrics.ObserveStage(metrics.StageTranscription, started, err)
	return res, err
}

// diarize never fails, no segments means no speaker information
func (o *Orchestrator) diarize(ctx context.Context, id string, media *tapi.Media) []align.Segment {
	if o.data.Diarizer == nil {
		return nil
	}
	started := time.Now()
	res, err := call(ctx, o.data.TranscriptionTimeout, func(ctx context.Context) ([]align.Segment, error) {
		return o.data.Diarizer.Diarize(ctx, media)
	})
	metrics.ObserveStage(metrics.StageDiarization, started, err)
	if err != nil {
		goapp.Log.Warn().Err(err).Str("ID", id).Msg("diarization failed, continue without speakers")
		return nil
	}
	goapp.Log.Info().Str("ID", id).Int("segments", len(res)).Strs("speakers", align.Speakers(res)).Msg("diarized")
	return res
}

// analyze returns the analysis write, a failure is recorded as an error of a completed recording
func (o *Orchestrator) analyze(ctx context.Context, id, transcript, speakerTranscript string) *recording.Analysis {
	if o.data.Analyzer == nil || strings.TrimSpace(transcript) == "" {
		goapp.Log.Info().Str("ID", id).Msg("analysis skipped")
		return &recording.Analysis{Status: status.Completed}
	}
	started := time.Now()
	res, err := call(ctx, o.data.AnalysisTimeout, func(ctx context.Context) (*aapi.Result, error) {
		return o.data.Analyzer.Analyze(ctx, &aapi.Input{Transcript: transcript, SpeakerTranscript: speakerTranscript})
	})
	if err == nil && res == nil {
		err = fmt.Errorf("no result")
	}
	if err == nil && res.Error != "" {
		err = fmt.Errorf("%s", res.Error)
	}
	metrics.ObserveStage(metrics.StageAnalysis, started, err)
	if err != nil {
		err = utils.NewStageError(stageAnalysis, err)
		goapp.Log.Warn().Err(err).Str("ID", id).Msg("analysis failed")
		return &recording.Analysis{Status: status.Completed, Error: err.Error()}
	}
	return &recording.Analysis{Status: status.Completed, Summary: res.Summary, ActionItems: res.ActionItems,
		Decisions: res.Decisions, VisualSummaryURL: res.VisualSummaryURL}
}

// fail is the last resort write. It uses own context as the pipeline one may be already done
func (o *Orchestrator) fail(id string, cause error) error {
	goapp.Log.Error().Err(cause).Str("ID", id).Msg("pipeline failed")
	metrics.RecordPipeline(status.Failed.String())
	ctx, cf := context.WithTimeout(context.Background(), failWriteTimeout)
	defer cf()
	rec, err := o.data.Machine.ApplyTranscription(ctx, id, &recording.Transcription{Status: status.Failed, Error: cause.Error()})
	if err != nil {
		return fmt.Errorf("can't mark failed (%s): %w", cause.Error(), err)
	}
	o.notify(ctx, rec)
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, rec *persistence.Recording) {
	if o.data.Notifier == nil || rec == nil {
		return
	}
	if err := o.data.Notifier.Notify(ctx, rec); err != nil {
		goapp.Log.Warn().Err(err).Str("ID", rec.ID).Str("status", rec.Status).Msg("can't notify")
	}
}

func (o *Orchestrator) saveResults(ctx context.Context, id, transcript, speakerTranscript string) {
	if o.data.Filer == nil {
		return
	}
	for name, text := range map[string]string{utils.TranscriptFile: transcript, utils.SpeakersFile: speakerTranscript} {
		b := []byte(text)
		if err := o.data.Filer.SaveFile(ctx, utils.MakeResultName(id, name), bytes.NewReader(b), int64(len(b))); err != nil {
			goapp.Log.Warn().Err(err).Str("ID", id).Str("file", name).Msg("can't save result")
		}
	}
}

// call runs f bounded by timeout. It returns on expiry even if f ignores its context
func call[T any](ctx context.Context, timeout time.Duration, f func(context.Context) (T, error)) (T, error) {
	ctx, cf := utils.WithTimeout(ctx, timeout)
	defer cf()
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("unexpected: %v", r)}
			}
		}()
		v, err := f(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
