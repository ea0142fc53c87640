package statusservice

import (
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// WsConn is interface for websocket handling in status service
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

// SubscribeFunc is called after a connection subscribes to a recording
type SubscribeFunc func(conn WsConn, id string)

// WSConnKeeper keeps websocket connections subscribed to recording ids.
// A client subscribes by sending the recording id, a new id replaces the old one.
type WSConnKeeper struct {
	byID        map[string]map[WsConn]struct{}
	byConn      map[WsConn]string
	lock        *sync.Mutex
	idleTimeout time.Duration
	onSubscribe SubscribeFunc
}

// syncConn serializes writes, gorilla connections allow one concurrent writer only
type syncConn struct {
	WsConn
	lock sync.Mutex
}

func (c *syncConn) WriteJSON(v interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.WsConn.WriteJSON(v)
}

// NewWSConnKeeper creates manager, onSubscribe may be nil
func NewWSConnKeeper(onSubscribe SubscribeFunc) *WSConnKeeper {
	return &WSConnKeeper{byID: map[string]map[WsConn]struct{}{}, byConn: map[WsConn]string{},
		lock: &sync.Mutex{}, idleTimeout: time.Minute * 30, onSubscribe: onSubscribe}
}

// HandleConnection reads subscriptions until the connection is closed or idle for too long
func (kp *WSConnKeeper) HandleConnection(conn WsConn) error {
	sc := &syncConn{WsConn: conn}
	defer kp.unsubscribe(sc)
	defer conn.Close()
	readCh := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(readCh)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				goapp.Log.Debug().Err(err).Msg("ws read ended")
				return
			}
			id := strings.TrimSpace(string(message))
			if id == "" {
				continue
			}
			select {
			case readCh <- id:
			case <-done:
				return
			}
		}
	}()

	idle := time.NewTimer(kp.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-idle.C:
			goapp.Log.Debug().Msg("ws connection idle, close")
			return nil
		case id, ok := <-readCh:
			if !ok {
				return nil
			}
			goapp.Log.Debug().Str("ID", goapp.Sanitize(id)).Msg("subscribe")
			kp.subscribe(sc, id)
			if kp.onSubscribe != nil {
				kp.onSubscribe(sc, id)
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(kp.idleTimeout)
		}
	}
}

func (kp *WSConnKeeper) unsubscribe(conn WsConn) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.unsubscribeNoSync(conn)
	goapp.Log.Debug().Int("active", len(kp.byConn)).Msg("ws unsubscribed")
}

func (kp *WSConnKeeper) unsubscribeNoSync(conn WsConn) {
	if id, ok := kp.byConn[conn]; ok {
		if conns, ok := kp.byID[id]; ok {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(kp.byID, id)
			}
		}
	}
	delete(kp.byConn, conn)
}

func (kp *WSConnKeeper) subscribe(conn WsConn, id string) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.unsubscribeNoSync(conn)
	kp.byConn[conn] = id
	conns, ok := kp.byID[id]
	if !ok {
		conns = map[WsConn]struct{}{}
		kp.byID[id] = conns
	}
	conns[conn] = struct{}{}
	goapp.Log.Debug().Int("active", len(kp.byConn)).Msg("ws subscribed")
}

// GetConnections returns connections subscribed to id
func (kp *WSConnKeeper) GetConnections(id string) ([]WsConn, bool) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	cm, ok := kp.byID[id]
	if !ok {
		return nil, false
	}
	res := make([]WsConn, 0, len(cm))
	for c := range cm {
		res = append(res, c)
	}
	return res, true
}
