//go:build integration

package integration

import (
	"context"
	"log"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/airenas/meetscribe/internal/pkg/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WaitForOpenOrFail waits until the host:port of URL accepts connections
func WaitForOpenOrFail(ctx context.Context, URL string) {
	u, err := url.Parse(URL)
	if err != nil {
		log.Fatalf("FAIL: can't parse %s", URL)
	}
	for {
		if err = listen(net.JoinHostPort(u.Hostname(), u.Port())); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			log.Fatalf("FAIL: can't access %s", URL)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// GetEnvOrFail returns env value or stops the tests
func GetEnvOrFail(s string) string {
	res := os.Getenv(s)
	if res == "" {
		log.Fatalf("no env '%s'", s)
	}
	return res
}

func listen(urlStr string) error {
	log.Printf("dial %s", urlStr)
	conn, err := net.DialTimeout("tcp", urlStr, time.Second)
	if err != nil {
		return err
	}
	return conn.Close()
}

func waitForDB(ctx context.Context, URL string) {
	dbPool, err := pgxpool.New(ctx, URL)
	if err != nil {
		log.Fatalf("FAIL: can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		log.Fatalf("FAIL: can't init db: %v", err)
	}
	for {
		log.Printf("check db live ...")
		if err = db.Live(ctx); err == nil {
			return
		}
		log.Print(err.Error())
		select {
		case <-ctx.Done():
			log.Fatalf("FAIL: can't access db")
		case <-time.After(500 * time.Millisecond):
		}
	}
}
