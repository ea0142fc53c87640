package consul

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/align"
	"github.com/airenas/meetscribe/internal/pkg/diarizer"
	tapi "github.com/airenas/meetscribe/internal/pkg/transcriber/api"
	"github.com/hashicorp/consul/api"
	"go.uber.org/multierr"
)

const (
	diarizeKey   = "diarizeURL"
	isHTTPSSLKey = "HTTPSSL"
	priorityKey  = "priority"
)

// Diarizer returns speaker segments of the media
type Diarizer interface {
	Diarize(ctx context.Context, media *tapi.Media) ([]align.Segment, error)
}

// Provider keeps diarization service instances registered in consul
type Provider struct {
	consul  *api.Client
	srvName string
	timeout time.Duration

	lock *sync.RWMutex
	srvs []*srvWrap
}

type srvWrap struct {
	real     Diarizer
	srv      string
	key      string
	priority float64
}

// NewProvider creates consul backed diarizer provider
func NewProvider(cfg *api.Config, srvNameInConsul string, timeout time.Duration) (*Provider, error) {
	if srvNameInConsul == "" {
		return nil, fmt.Errorf("no srv name")
	}
	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	res := newProvider(c, srvNameInConsul)
	res.timeout = timeout
	return res, nil
}

func newProvider(c *api.Client, srvNameInConsul string) *Provider {
	goapp.Log.Info().Str("service", srvNameInConsul).Msg("cfg: srv name in consul")
	return &Provider{consul: c, srvName: srvNameInConsul, lock: &sync.RWMutex{}, srvs: make([]*srvWrap, 0)}
}

// Diarize calls one of the registered instances, selected randomly by priority
func (c *Provider) Diarize(ctx context.Context, media *tapi.Media) ([]align.Segment, error) {
	d, srv, err := c.get()
	if err != nil {
		return nil, err
	}
	goapp.Log.Debug().Str("service", srv).Msg("diarize")
	return d.Diarize(ctx, media)
}

func (c *Provider) get() (Diarizer, string, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if len(c.srvs) == 0 {
		return nil, "", fmt.Errorf("no active diarization service `%s`", c.srvName)
	}
	if len(c.srvs) == 1 {
		t := c.srvs[0]
		return t.real, t.srv, nil
	}
	i, err := getRandomByPriority(c.srvs)
	if err != nil {
		return nil, "", fmt.Errorf("can't select diarizer: %w", err)
	}
	t := c.srvs[i]
	return t.real, t.srv, nil
}

func getRandomByPriority(wraps []*srvWrap) (int, error) {
	prMax := 0.0
	for _, tr := range wraps {
		prMax += tr.priority
	}
	if prMax < 0.1 {
		return 0, fmt.Errorf("wrong priority sum found %f", prMax)
	}
	rnd := rand.Float64() * prMax
	prMax = 0.0
	for i, tr := range wraps {
		prMax += tr.priority
		if prMax > rnd {
			return i, nil
		}
	}
	return len(wraps) - 1, nil
}

// StartRegistryLoop refreshes instances every checkInterval until ctx is done
func (c *Provider) StartRegistryLoop(ctx context.Context, checkInterval time.Duration) (<-chan struct{}, error) {
	if checkInterval <= 0 {
		return nil, fmt.Errorf("wrong check interval %s", checkInterval)
	}
	goapp.Log.Info().Msgf("Starting consul service check every %v", checkInterval)
	res := make(chan struct{}, 2)
	go func() {
		defer close(res)
		c.serviceLoop(ctx, checkInterval)
	}()
	return res, nil
}

func (c *Provider) serviceLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	// run on startup
	if err := c.check(ctx); err != nil {
		goapp.Log.Error().Err(err).Send()
	}
	for {
		select {
		case <-ticker.C:
			if err := c.check(ctx); err != nil {
				goapp.Log.Error().Err(err).Send()
			}
		case <-ctx.Done():
			goapp.Log.Info().Msgf("Stopped consul timer service")
			return
		}
	}
}

func (c *Provider) check(ctx context.Context) error {
	ctxInt, cf := context.WithTimeout(ctx, time.Second*5)
	defer cf()
	srvs, _, err := c.consul.Health().Service(c.srvName, "", true, (&api.QueryOptions{}).WithContext(ctxInt))
	if err != nil {
		return fmt.Errorf("can't invoke consul: %w", err)
	}
	return c.updateSrv(srvs)
}

func (c *Provider) updateSrv(srvs []*api.ServiceEntry) error {
	goapp.Log.Info().Msgf("got %d services from consul", len(srvs))
	c.lock.Lock()
	defer c.lock.Unlock()
	ms := map[string]*api.ServiceEntry{}
	for _, s := range srvs {
		ms[key(s)] = s
	}
	kept := []*srvWrap{}
	for _, s := range c.srvs {
		if v, ok := ms[s.srv]; ok && s.key == fullKey(v) {
			kept = append(kept, s)
			delete(ms, s.srv)
			continue
		}
		goapp.Log.Warn().Str("service", s.srv).Msgf("dropped diarizer")
	}
	if len(kept) == len(c.srvs) && len(ms) == 0 {
		return nil
	}
	c.srvs = kept
	var err error
	for v, k := range ms {
		tr, errInt := c.newDiarizer(v, k)
		if errInt != nil {
			err = multierr.Append(err, errInt)
			continue
		}
		c.srvs = append(c.srvs, tr)
		goapp.Log.Info().Str("service", v).Float64("priority", tr.priority).Msg("added diarizer")
	}
	return err
}

func (c *Provider) newDiarizer(v string, s *api.ServiceEntry) (*srvWrap, error) {
	d, err := diarizer.NewClient(getURL(s, diarizeKey), c.timeout)
	if err != nil {
		return nil, fmt.Errorf("can't init diarizer for %s: %w", v, err)
	}
	priority, err := getPriority(s)
	if err != nil {
		return nil, fmt.Errorf("can't init diarizer for %s: %w", v, err)
	}
	return &srvWrap{real: d, srv: v, key: fullKey(s), priority: priority}, nil
}

func getPriority(s *api.ServiceEntry) (float64, error) {
	v, ok := s.Service.Meta[priorityKey]
	if !ok {
		return 1, nil
	}
	res, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse priority '%s': %w", v, err)
	}
	if res < 0.5 || res > 50 {
		return 0, fmt.Errorf("wrong priority value '%f', not in [0.5, 50]", res)
	}
	return res, nil
}

func getURL(s *api.ServiceEntry, key string) string {
	v, ok := s.Service.Meta[key]
	if !ok {
		return ""
	}
	ssl := ""
	if isSSL, ok := s.Service.Meta[isHTTPSSLKey]; ok {
		if boolValue, err := strconv.ParseBool(isSSL); err == nil && boolValue {
			ssl = "s"
		}
	}
	return fmt.Sprintf("http%s://%s:%d/%s", ssl, s.Service.Address, s.Service.Port, strings.TrimPrefix(v, "/"))
}

func key(s *api.ServiceEntry) string {
	return fmt.Sprintf("%s:%d", s.Service.Address, s.Service.Port)
}

func fullKey(s *api.ServiceEntry) string {
	res := strings.Builder{}
	for _, key := range [...]string{diarizeKey, isHTTPSSLKey, priorityKey} {
		v, ok := s.Service.Meta[key]
		if ok {
			res.WriteString(key + ":" + v + ",")
		}
	}
	return res.String()
}
