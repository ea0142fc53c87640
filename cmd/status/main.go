package main

import (
	"context"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/postgres"
	"github.com/airenas/meetscribe/internal/pkg/recording"
	"github.com/airenas/meetscribe/internal/pkg/statusservice"
	"github.com/labstack/gommon/color"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

func main() {
	goapp.StartWithDefault()
	printBanner()

	cfg := goapp.Config
	data := &statusservice.Data{}
	data.Port = cfg.GetInt("port")

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	dbPool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	machine, err := recording.NewMachine(db)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init recordings")
	}
	data.Reader = machine

	wsh := statusservice.NewWSConnKeeper(statusservice.NewCurrentStatusSender(machine, time.Second*5))
	data.WSHandler = wsh

	hData := &statusservice.HandlerData{}
	hData.Reader = machine
	hData.WorkerCount = cfg.GetInt("worker.count")
	hData.WSHandler = wsh
	hData.GueClient, err = gue.NewClient(pgxv5.NewConnPool(dbPool))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}

	goapp.Log.Info().Msg("starting handler")
	doneCh, err := statusservice.StartStatusHandler(ctx, hData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start status handler service")
	}

	goapp.Log.Info().Msg("starting web service")
	if err := statusservice.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
	goapp.Log.Info().Msg("exit web service")
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
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
         __        __
   _____/ /_____ _/ /___  _______
  / ___/ __/ __ ` + "`" + `/ __/ / / / ___/
 (__  ) /_/ /_/ / /_/ /_/ (__  )
/____/\__/\__,_/\__/\__,_/____/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/meetscribe"))
}
