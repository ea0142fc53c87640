package statusservice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/utils"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Reader loads recordings
type Reader interface {
	Get(ctx context.Context, id string) (*persistence.Recording, error)
	List(ctx context.Context, offset, limit int) ([]*persistence.Recording, int, error)
}

// WSConnHandler WwbSocketConnection wrapper
type WSConnHandler interface {
	HandleConnection(WsConn) error
	GetConnections(id string) ([]WsConn, bool)
}

// Data keeps data required for service work
type Data struct {
	Port      int
	Reader    Reader
	WSHandler WSConnHandler
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP meetscribe status service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("meetscribe_status", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/status/:id", statusHandler(data))
	e.GET("/recordings/:id", recordingHandler(data))
	e.GET("/recordings", listHandler(data))
	e.GET("/live", live(data))
	e.GET("/subscribe", subscribeHandler(data))

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

type statusResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type recordingResult struct {
	ID                     string                   `json:"id"`
	OriginalFilename       string                   `json:"original_filename"`
	MediaURL               string                   `json:"media_url"`
	FileSize               int64                    `json:"file_size,omitempty"`
	ContentType            string                   `json:"content_type,omitempty"`
	Status                 string                   `json:"status"`
	Error                  string                   `json:"processing_error,omitempty"`
	Transcript             string                   `json:"transcript,omitempty"`
	TranscriptWithSpeakers string                   `json:"transcript_with_speakers,omitempty"`
	Duration               *float64                 `json:"duration,omitempty"`
	Summary                string                   `json:"summary,omitempty"`
	ActionItems            []persistence.ActionItem `json:"action_items,omitempty"`
	Decisions              []persistence.Decision   `json:"decisions,omitempty"`
	VisualSummaryURL       string                   `json:"visual_summary_url,omitempty"`
	Created                time.Time                `json:"created_at"`
	Updated                time.Time                `json:"updated_at"`
}

type listResult struct {
	Recordings []*recordingResult `json:"recordings"`
	Total      int                `json:"total"`
}

func statusHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("status method")()
		rec, err := load(c, data)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, mapStatus(rec))
	}
}

func recordingHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("recording method")()
		rec, err := load(c, data)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, mapRecording(rec))
	}
}

func listHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("list method")()
		offset, err := intParam(c, "offset")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		limit, err := intParam(c, "limit")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		recs, total, err := data.Reader.List(c.Request().Context(), offset, limit)
		if err != nil {
			return toHTTPError(err)
		}
		res := listResult{Recordings: make([]*recordingResult, 0, len(recs)), Total: total}
		for _, r := range recs {
			res.Recordings = append(res.Recordings, mapRecording(r))
		}
		return c.JSON(http.StatusOK, res)
	}
}

func load(c echo.Context, data *Data) (*persistence.Recording, error) {
	id := c.Param("id")
	if id == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "No ID")
	}
	rec, err := data.Reader.Get(c.Request().Context(), id)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return rec, nil
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	res, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("wrong %s '%s'", name, goapp.Sanitize(v))
	}
	return res, nil
}

func toHTTPError(err error) error {
	if errors.Is(err, utils.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}
	if utils.IsValidation(err) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	goapp.Log.Error().Err(err).Send()
	return echo.NewHTTPError(http.StatusInternalServerError, "Service error")
}

func mapStatus(rec *persistence.Recording) *statusResult {
	return &statusResult{ID: rec.ID, Status: rec.Status, Error: utils.FromSQLStr(rec.Error)}
}

func mapRecording(rec *persistence.Recording) *recordingResult {
	res := &recordingResult{ID: rec.ID, OriginalFilename: rec.OriginalFilename, MediaURL: rec.MediaURL,
		FileSize: rec.FileSize.Int64, ContentType: utils.FromSQLStr(rec.ContentType), Status: rec.Status,
		Error: utils.FromSQLStr(rec.Error), Transcript: utils.FromSQLStr(rec.Transcript),
		TranscriptWithSpeakers: utils.FromSQLStr(rec.TranscriptWithSpeakers), Duration: utils.FromSQLFloat64(rec.Duration),
		Summary: utils.FromSQLStr(rec.Summary), ActionItems: rec.ActionItems, Decisions: rec.Decisions,
		VisualSummaryURL: utils.FromSQLStr(rec.VisualSummaryURL), Created: rec.Created, Updated: rec.Updated}
	return res
}

func validate(data *Data) error {
	if data.Reader == nil {
		return fmt.Errorf("no recordings reader")
	}
	if data.WSHandler == nil {
		return fmt.Errorf("no WSHandler")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func subscribeHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		return data.WSHandler.HandleConnection(ws)
	}
}
