package main

import (
	"context"

	"github.com/airenas/async-api/pkg/miniofs"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/postgres"
	"github.com/airenas/meetscribe/internal/pkg/recording"
	"github.com/airenas/meetscribe/internal/pkg/upload"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()
	printBanner()

	cfg := goapp.Config
	data := &upload.Data{}
	data.Port = cfg.GetInt("port")
	data.MaxSize = cfg.GetInt64("upload.maxSize")
	data.MediaURL = cfg.GetString("media.publicURL")

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
	data.Creator, err = recording.NewMachine(db)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init recordings")
	}
	data.Saver, err = miniofs.NewFiler(ctx, miniofs.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file saver")
	}
	data.MsgSender, err = postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}

	if err := upload.StartWebServer(data); err != nil {
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
                 __                __
    __  ______  / /___  ____ _____/ /
   / / / / __ \/ / __ \/ __ ` + "`" + `/ __  /
  / /_/ / /_/ / / /_/ / /_/ / /_/ /
  \__,_/ .___/_/\____/\__,_/\__,_/   v: %s
      /_/

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/meetscribe"))
}
