package main

import (
	"context"

	"github.com/airenas/async-api/pkg/miniofs"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/postgres"
	"github.com/airenas/meetscribe/internal/pkg/recording"
	"github.com/airenas/meetscribe/internal/pkg/result"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()
	printBanner()

	cfg := goapp.Config
	data := &result.Data{}
	data.Port = cfg.GetInt("port")

	ctx := context.Background()
	dbPool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	data.Recordings, err = recording.NewMachine(db)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init recordings")
	}
	data.Reader, err = miniofs.NewFiler(ctx, miniofs.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file reader")
	}

	if err := result.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
                    __                      _ __
   ____ ___  ___  / /_______________(_) /_  ___
  / __ ` + "`" + `__ \/ _ \/ __/ ___/ ___/ ___/ / __ \/ _ \
 / / / / / /  __/ /_(__  ) /__/ /  / / /_/ /  __/
/_/ /_/ /_/\___/\__/____/\___/_/  /_/_.___/\___/
                         ____
   ________  _______  __/ / /_
  / ___/ _ \/ ___/ / / / / __/
 / /  /  __(__  ) /_/ / / /_
/_/   \___/____/\__,_/_/\__/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/meetscribe"))
}
