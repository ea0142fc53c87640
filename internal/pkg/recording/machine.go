package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/status"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/google/uuid"
)

const (
	// DefaultLimit is used by List when limit is 0
	DefaultLimit = 100
	// MaxLimit is the biggest page List returns
	MaxLimit = 1000

	defaultFailMsg = "transcription failed"
)

// Store persists recordings. Update calls change only their own field group
// and only when the current status is one of allowedFrom.
type Store interface {
	Insert(ctx context.Context, rec *persistence.Recording) error
	UpdateTranscription(ctx context.Context, upd *persistence.TranscriptionUpdate, allowedFrom []string) (*persistence.Recording, error)
	UpdateAnalysis(ctx context.Context, upd *persistence.AnalysisUpdate, allowedFrom []string) (*persistence.Recording, error)
	Load(ctx context.Context, id string) (*persistence.Recording, error)
	List(ctx context.Context, offset, limit int) ([]*persistence.Recording, int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Machine owns the recording lifecycle
type Machine struct {
	store Store
	now   func() time.Time
}

// NewInput holds the source attributes of a new recording
type NewInput struct {
	// ID is optional, generated if empty
	ID               string
	OriginalFilename string
	MediaURL         string
	StoragePath      string
	Size             int64
	ContentType      string
	Email            string
}

// Transcription is the transcription field group write
type Transcription struct {
	Status                 status.Status
	Transcript             string
	TranscriptWithSpeakers string
	Duration               *float64
	Error                  string
}

// Analysis is the analysis field group write
type Analysis struct {
	Status           status.Status
	Summary          string
	ActionItems      []persistence.ActionItem
	Decisions        []persistence.Decision
	VisualSummaryURL string
	Error            string
}

// NewMachine creates the state machine
func NewMachine(store Store) (*Machine, error) {
	if store == nil {
		return nil, fmt.Errorf("no store")
	}
	return &Machine{store: store, now: time.Now}, nil
}

// NewID returns a fresh recording ID
func NewID() string {
	return uuid.NewString()
}

// Create inserts a new pending recording
func (m *Machine) Create(ctx context.Context, in *NewInput) (*persistence.Recording, error) {
	if err := validateNew(in); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = NewID()
	}
	now := m.now()
	rec := &persistence.Recording{
		ID:               id,
		OriginalFilename: in.OriginalFilename,
		MediaURL:         in.MediaURL,
		StoragePath:      in.StoragePath,
		FileSize:         utils.ToSQLInt64(in.Size),
		ContentType:      utils.ToSQLStr(in.ContentType),
		Email:            utils.ToSQLStr(in.Email),
		Status:           status.Pending.String(),
		Created:          now,
		Updated:          now,
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	goapp.Log.Info().Str("ID", id).Str("file", in.OriginalFilename).Msg("recording created")
	return rec, nil
}

func validateNew(in *NewInput) error {
	if in == nil {
		return utils.NewValidationError("", "no data")
	}
	if strings.TrimSpace(in.OriginalFilename) == "" {
		return utils.NewValidationError("original_filename", "empty")
	}
	if strings.TrimSpace(in.MediaURL) == "" {
		return utils.NewValidationError("media_url", "empty")
	}
	if strings.TrimSpace(in.StoragePath) == "" {
		return utils.NewValidationError("storage_path", "empty")
	}
	if in.Size < 0 {
		return utils.NewValidationError("size", fmt.Sprintf("wrong value %d", in.Size))
	}
	return nil
}

// ApplyTranscription writes the transcription field group and status.
// Analysis fields are never touched.
func (m *Machine) ApplyTranscription(ctx context.Context, id string, data *Transcription) (*persistence.Recording, error) {
	if data == nil {
		return nil, utils.NewValidationError("", "no data")
	}
	switch data.Status {
	case status.Processing, status.Analyzing, status.Failed:
	default:
		return nil, utils.NewValidationError("status", fmt.Sprintf("'%s' is not a transcription status", data.Status))
	}
	errMsg := data.Error
	if data.Status == status.Failed && strings.TrimSpace(errMsg) == "" {
		errMsg = defaultFailMsg
	}
	upd := &persistence.TranscriptionUpdate{
		ID:                     id,
		Status:                 data.Status.String(),
		Transcript:             utils.ToSQLStr(data.Transcript),
		TranscriptWithSpeakers: utils.ToSQLStr(data.TranscriptWithSpeakers),
		Duration:               utils.ToSQLFloat64(data.Duration),
		Error:                  utils.ToSQLStr(errMsg),
		Updated:                m.now(),
	}
	res, err := m.store.UpdateTranscription(ctx, upd, status.Names(status.AllowedFrom(data.Status)))
	if err != nil {
		return nil, mapUpdateErr(err, "transcription")
	}
	goapp.Log.Info().Str("ID", id).Str("status", data.Status.String()).Msg("transcription saved")
	return res, nil
}

// ApplyAnalysis writes the analysis field group and status.
// Transcription fields are never touched.
func (m *Machine) ApplyAnalysis(ctx context.Context, id string, data *Analysis) (*persistence.Recording, error) {
	if data == nil {
		return nil, utils.NewValidationError("", "no data")
	}
	if data.Status != status.Completed {
		return nil, utils.NewValidationError("status", fmt.Sprintf("'%s' is not an analysis status", data.Status))
	}
	upd := &persistence.AnalysisUpdate{
		ID:               id,
		Status:           data.Status.String(),
		Summary:          utils.ToSQLStr(data.Summary),
		ActionItems:      data.ActionItems,
		Decisions:        data.Decisions,
		VisualSummaryURL: utils.ToSQLStr(data.VisualSummaryURL),
		Error:            utils.ToSQLStr(data.Error),
		Updated:          m.now(),
	}
	res, err := m.store.UpdateAnalysis(ctx, upd, status.Names(status.AllowedFrom(data.Status)))
	if err != nil {
		return nil, mapUpdateErr(err, "analysis")
	}
	goapp.Log.Info().Str("ID", id).Str("status", data.Status.String()).Msg("analysis saved")
	return res, nil
}

func mapUpdateErr(err error, group string) error {
	if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrWrongTransition) {
		return err
	}
	return fmt.Errorf("can't update %s: %w", group, err)
}

// Get loads the recording, returns utils.ErrNotFound for unknown id
func (m *Machine) Get(ctx context.Context, id string) (*persistence.Recording, error) {
	res, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't load recording: %w", err)
	}
	if res == nil {
		return nil, utils.ErrNotFound
	}
	return res, nil
}

// List returns a page of recordings, newest first, and the total count
func (m *Machine) List(ctx context.Context, offset, limit int) ([]*persistence.Recording, int, error) {
	if offset < 0 {
		return nil, 0, utils.NewValidationError("offset", fmt.Sprintf("wrong value %d", offset))
	}
	if limit < 0 || limit > MaxLimit {
		return nil, 0, utils.NewValidationError("limit", fmt.Sprintf("wrong value %d, max %d", limit, MaxLimit))
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	res, total, err := m.store.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("can't list recordings: %w", err)
	}
	return res, total, nil
}

// Delete removes the recording row, returns false if there was none
func (m *Machine) Delete(ctx context.Context, id string) (bool, error) {
	res, err := m.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("can't delete recording: %w", err)
	}
	if res {
		goapp.Log.Info().Str("ID", id).Msg("recording deleted")
	}
	return res, nil
}
