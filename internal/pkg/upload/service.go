package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	perrors "github.com/pkg/errors"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/meetscribe/internal/pkg/messages"
	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/recording"
	"github.com/airenas/meetscribe/internal/pkg/utils"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	prmFile  = "file"
	prmFiles = "files"
	prmEmail = "email"

	defaultContentType = "application/octet-stream"
	maxFiles           = 20
	discardTimeout     = 15 * time.Second
)

// FileSaver provides save file functionality, Clean removes all files of an ID
type FileSaver interface {
	SaveFile(ctx context.Context, name string, r io.Reader, fileSize int64) error
	Clean(ctx context.Context, id string) error
}

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// Creator creates new recordings, Delete drops the ones that could not be queued
type Creator interface {
	Create(ctx context.Context, in *recording.NewInput) (*persistence.Recording, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Data keeps data required for service work
type Data struct {
	Port      int
	Saver     FileSaver
	Creator   Creator
	MsgSender MsgSender
	// MaxSize is the max file size in bytes, 0 - no limit
	MaxSize int64
	// MediaURL is the public url prefix of the media download endpoint
	MediaURL string
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP meetscribe upload service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 600 * time.Second
	e.Server.WriteTimeout = 60 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Saver == nil {
		return perrors.New("no file saver")
	}
	if data.Creator == nil {
		return fmt.Errorf("no recording creator")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	if data.MaxSize < 0 {
		return fmt.Errorf("wrong max size %d", data.MaxSize)
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("meetscribe_upload", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.POST("/upload", upload(data))
	e.POST("/upload-multiple", uploadMultiple(data))
	e.GET("/live", live(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

type result struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status,omitempty"`
	Queued   bool   `json:"queued,omitempty"`
	Error    string `json:"error,omitempty"`
}

type multiResult struct {
	Results []result `json:"results"`
	Failed  int      `json:"failed"`
}

func upload(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("upload method")()
		ctx := c.Request().Context()

		form, err := c.MultipartForm()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no multipart form data")
		}
		defer cleanFiles(form)
		email, err := takeEmail(form)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		fHeaders := form.File[prmFile]
		if len(fHeaders) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "no form file parameter 'file'")
		}
		if len(fHeaders) > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "only one file expected, use /upload-multiple")
		}
		res, err := processFile(ctx, data, fHeaders[0], email)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func uploadMultiple(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("upload multiple method")()
		ctx := c.Request().Context()

		form, err := c.MultipartForm()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no multipart form data")
		}
		defer cleanFiles(form)
		email, err := takeEmail(form)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		fHeaders := form.File[prmFiles]
		if len(fHeaders) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "no form file parameter 'files'")
		}
		if len(fHeaders) > maxFiles {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("too many files, max %d", maxFiles))
		}
		res := multiResult{Results: make([]result, 0, len(fHeaders))}
		for _, h := range fHeaders {
			r, err := processFile(ctx, data, h, email)
			if err != nil {
				res.Failed++
				res.Results = append(res.Results, result{Filename: h.Filename, Error: userError(err)})
				continue
			}
			res.Results = append(res.Results, *r)
		}
		return c.JSON(http.StatusOK, res)
	}
}

// processFile validates, stores, creates and queues one uploaded file
func processFile(ctx context.Context, data *Data, h *multipart.FileHeader, email string) (*result, error) {
	if err := validateFile(h, data.MaxSize); err != nil {
		return nil, err
	}
	id := recording.NewID()
	fn, err := utils.MakeValidateFileName(id, h.Filename)
	if err != nil {
		return nil, utils.NewValidationError("file", err.Error())
	}
	ct := contentType(h)
	if err := saveFile(ctx, data.Saver, fn, h); err != nil {
		return nil, err
	}
	rec, err := data.Creator.Create(ctx, &recording.NewInput{ID: id, OriginalFilename: h.Filename,
		MediaURL: mediaURL(data.MediaURL, id), StoragePath: fn, Size: h.Size, ContentType: ct, Email: email})
	if err != nil {
		return nil, err
	}
	res := &result{ID: rec.ID, Filename: h.Filename, Status: rec.Status}
	if !utils.ShouldTranscribe(ct) {
		goapp.Log.Info().Str("ID", rec.ID).Str("contentType", ct).Msg("not a media type, skip processing")
		return res, nil
	}
	err = data.MsgSender.SendMessage(ctx, &messages.ProcessMessage{QueueMessage: amessages.QueueMessage{ID: rec.ID},
		MediaURL: rec.MediaURL, StoragePath: rec.StoragePath, FileName: filepath.Base(fn), ContentType: ct}, messages.Work)
	if err != nil {
		discard(data, rec.ID)
		return nil, fmt.Errorf("can't send msg: %w", err)
	}
	res.Queued = true
	return res, nil
}

// discard removes the row and files of a recording that could not be queued.
// The request context may be already canceled.
func discard(data *Data, id string) {
	ctx, cf := context.WithTimeout(context.Background(), discardTimeout)
	defer cf()
	if _, err := data.Creator.Delete(ctx, id); err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't delete recording")
	}
	if err := data.Saver.Clean(ctx, id); err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't clean files")
	}
	goapp.Log.Warn().Str("ID", id).Msg("discarded not queued recording")
}

func validateFile(h *multipart.FileHeader, maxSize int64) error {
	if h == nil || h.Filename == "" {
		return utils.NewValidationError("file", "no file name")
	}
	ext := filepath.Ext(h.Filename)
	if !utils.SupportAudioExt(ext) {
		return utils.NewValidationError("file", "wrong file extension: "+ext)
	}
	if h.Size == 0 {
		return utils.NewValidationError("file", "empty file")
	}
	if maxSize > 0 && h.Size > maxSize {
		return utils.NewValidationError("file", fmt.Sprintf("file too large: %d > %d", h.Size, maxSize))
	}
	return nil
}

func saveFile(ctx context.Context, fs FileSaver, name string, h *multipart.FileHeader) error {
	f, err := h.Open()
	if err != nil {
		return utils.NewValidationError("file", "can't read file")
	}
	defer f.Close()
	if err = fs.SaveFile(ctx, name, f, h.Size); err != nil {
		return fmt.Errorf("can't save '%s': %w", name, err)
	}
	return nil
}

func takeEmail(form *multipart.Form) (string, error) {
	v := strings.TrimSpace(takeFirst(form.Value[prmEmail], ""))
	if v == "" {
		return "", nil
	}
	a, err := mail.ParseAddress(v)
	if err != nil {
		return "", perrors.Errorf("wrong email '%s'", v)
	}
	return a.Address, nil
}

func contentType(h *multipart.FileHeader) string {
	if res := strings.TrimSpace(h.Header.Get(echo.HeaderContentType)); res != "" {
		return res
	}
	return defaultContentType
}

func mediaURL(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return strings.TrimSuffix(prefix, "/") + "/" + id
}

func toHTTPError(err error) error {
	if utils.IsValidation(err) {
		return echo.NewHTTPError(http.StatusBadRequest, userError(err))
	}
	goapp.Log.Error().Err(err).Send()
	return echo.NewHTTPError(http.StatusInternalServerError)
}

func userError(err error) string {
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	goapp.Log.Error().Err(err).Send()
	return "internal error"
}

func takeFirst[K interface{}](a []K, d K) K {
	if len(a) > 0 {
		return a[0]
	}
	return d
}

func cleanFiles(f *multipart.Form) {
	if f != nil {
		_ = f.RemoveAll()
	}
}
