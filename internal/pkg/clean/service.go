package clean

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/pkg/errors"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Cleaner removes everything stored for the recording
type Cleaner interface {
	Clean(ctx context.Context, ID string) error
}

// Deleter removes the recording row, false means there was no such recording
type Deleter interface {
	Delete(ctx context.Context, id string) (bool, error)
}

// Data keeps data required for service work
type Data struct {
	Port       int
	Cleaner    Cleaner
	Recordings Deleter
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting meetscribe clean service")
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Cleaner == nil {
		return errors.New("no cleaner")
	}
	if data.Recordings == nil {
		return errors.New("no recordings deleter")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("meetscribe_clean", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.DELETE("/delete/:id", deleteRecording(data))
	e.DELETE("/recordings/:id", deleteRecording(data))
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

func deleteRecording(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("delete method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		ctx := c.Request().Context()
		found, err := data.Recordings.Delete(ctx, id)
		if err != nil {
			goapp.Log.Error().Err(err).Str("ID", id).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Can't delete")
		}
		if !found {
			return echo.NewHTTPError(http.StatusNotFound, "Recording not found")
		}
		if err := data.Cleaner.Clean(ctx, id); err != nil {
			goapp.Log.Error().Err(err).Str("ID", id).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Can't delete")
		}
		return c.JSON(http.StatusOK, deleteResult{Message: "Recording deleted"})
	}
}

type deleteResult struct {
	Message string `json:"message"`
}
