package mocks

import (
	"context"
	"io"

	"github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/meetscribe/internal/pkg/align"
	aapi "github.com/airenas/meetscribe/internal/pkg/analyzer/api"
	"github.com/airenas/meetscribe/internal/pkg/persistence"
	tapi "github.com/airenas/meetscribe/internal/pkg/transcriber/api"
	"github.com/stretchr/testify/mock"
)

// Filer is minio mock
type Filer struct{ mock.Mock }

// SaveFile func mock
func (m *Filer) SaveFile(ctx context.Context, name string, r io.Reader, size int64) error {
	args := m.Called(ctx, name, r, size)
	return args.Error(0)
}

// Clean func mock
func (m *Filer) Clean(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// LoadFile func mock
func (m *Filer) LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error) {
	args := m.Called(ctx, fileName)
	return to[io.ReadSeekCloser](args.Get(0)), args.Error(1)
}

// Store is recordings store mock
type Store struct{ mock.Mock }

// Insert func mock
func (m *Store) Insert(ctx context.Context, rec *persistence.Recording) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// UpdateTranscription func mock
func (m *Store) UpdateTranscription(ctx context.Context, upd *persistence.TranscriptionUpdate, allowedFrom []string) (*persistence.Recording, error) {
	args := m.Called(ctx, upd, allowedFrom)
	return to[*persistence.Recording](args.Get(0)), args.Error(1)
}

// UpdateAnalysis func mock
func (m *Store) UpdateAnalysis(ctx context.Context, upd *persistence.AnalysisUpdate, allowedFrom []string) (*persistence.Recording, error) {
	args := m.Called(ctx, upd, allowedFrom)
	return to[*persistence.Recording](args.Get(0)), args.Error(1)
}

// Load func mock
func (m *Store) Load(ctx context.Context, id string) (*persistence.Recording, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Recording](args.Get(0)), args.Error(1)
}

// List func mock
func (m *Store) List(ctx context.Context, offset, limit int) ([]*persistence.Recording, int, error) {
	args := m.Called(ctx, offset, limit)
	return to[[]*persistence.Recording](args.Get(0)), args.Int(1), args.Error(2)
}

// Delete func mock
func (m *Store) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Sender is postgres queue mock
type Sender struct{ mock.Mock }

// SendMessage func mock
func (m *Sender) SendMessage(ctx context.Context, msg messages.Message, queue string) error {
	args := m.Called(ctx, msg, queue)
	return args.Error(0)
}

// Transcriber is speech to text client mock
type Transcriber struct{ mock.Mock }

// Transcribe func mock
func (m *Transcriber) Transcribe(ctx context.Context, media *tapi.Media) (*tapi.Result, error) {
	args := m.Called(ctx, media)
	return to[*tapi.Result](args.Get(0)), args.Error(1)
}

// Diarizer is diarization client mock
type Diarizer struct{ mock.Mock }

// Diarize func mock
func (m *Diarizer) Diarize(ctx context.Context, media *tapi.Media) ([]align.Segment, error) {
	args := m.Called(ctx, media)
	return to[[]align.Segment](args.Get(0)), args.Error(1)
}

// Analyzer is meeting analysis client mock
type Analyzer struct{ mock.Mock }

// Analyze func mock
func (m *Analyzer) Analyze(ctx context.Context, in *aapi.Input) (*aapi.Result, error) {
	args := m.Called(ctx, in)
	return to[*aapi.Result](args.Get(0)), args.Error(1)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}

// Notifier is status change notifier mock
type Notifier struct{ mock.Mock }

// Notify func mock
func (m *Notifier) Notify(ctx context.Context, rec *persistence.Recording) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
