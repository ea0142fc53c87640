package result

import (
	"context"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/utils"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// FileReader loads file by name
type FileReader interface {
	LoadFile(ctx context.Context, name string) (io.ReadSeekCloser, error)
}

// RecordingGetter loads recording info
type RecordingGetter interface {
	Get(ctx context.Context, id string) (*persistence.Recording, error)
}

// Data keeps data required for service work
type Data struct {
	Port       int
	Reader     FileReader
	Recordings RecordingGetter
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting meetscribe result service")

	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Minute

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Reader == nil {
		return errors.New("no file reader")
	}
	if data.Recordings == nil {
		return errors.New("no recordings getter")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("meetscribe_result", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/result/:id/:file", download(data))
	e.HEAD("/result/:id/:file", download(data))
	e.GET("/media/:id", downloadMedia(data))
	e.HEAD("/media/:id", downloadMedia(data))
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

func download(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("download method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		fileName := c.Param("file")
		if !utils.IsResultFile(fileName) {
			return echo.NewHTTPError(http.StatusNotFound, "Unknown file")
		}
		return serveFile(c, data, utils.MakeResultName(id, fileName), fileName, "text/plain; charset=utf-8")
	}
}

func downloadMedia(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("media method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		rec, err := data.Recordings.Get(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "not found")
			}
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Can't get recording")
		}
		return serveFile(c, data, rec.StoragePath, rec.OriginalFilename, utils.FromSQLStr(rec.ContentType))
	}
}

func serveFile(c echo.Context, data *Data, name, downloadName, contentType string) error {
	goapp.Log.Info().Str("file", name).Msg("loading")
	file, err := data.Reader.LoadFile(c.Request().Context(), name)
	if err != nil {
		return fileError(err)
	}
	defer file.Close()
	modTime := time.Time{}
	if stGetter, ok := file.(interface{ Stat() (fs.FileInfo, error) }); ok {
		stat, err := stGetter.Stat()
		if err != nil {
			return fileError(err)
		}
		modTime = stat.ModTime()
	}
	if downloadName == "" {
		downloadName = filepath.Base(name)
	}
	w := c.Response()
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	if contentType != "" {
		w.Header().Set(echo.HeaderContentType, contentType)
	}
	http.ServeContent(w, c.Request(), downloadName, modTime, file)
	return nil
}

func fileError(err error) error {
	goapp.Log.Error().Err(err).Send()
	if isNotFound(err) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Can't get file")
}

func isNotFound(err error) bool {
	var errTest minio.ErrorResponse
	return errors.As(err, &errTest) && errTest.StatusCode == http.StatusNotFound
}
