package statusservice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/airenas/meetscribe/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	wsService *WSConnKeeper
)

func initWSTest(t *testing.T) {
	t.Helper()
	wsService = NewWSConnKeeper(nil)
}

func createTestConn(t *testing.T, id string, closeChan <-chan struct{}) *mockWSConn {
	t.Helper()
	connWSMock := &mockWSConn{}
	connWSMock.On("WriteJSON", mock.Anything).Return(nil)
	connWSMock.On("ReadMessage").Return(1, []byte(id), nil).Once()
	connWSMock.On("ReadMessage").Return(1, nil, fmt.Errorf("err")).Run(func(args mock.Arguments) {
		<-closeChan
	})
	connWSMock.On("Close").Return(nil)
	return connWSMock
}

func run(t *testing.T, wg *sync.WaitGroup, conn WsConn) {
	t.Helper()
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := wsService.HandleConnection(conn)
		assert.Nil(t, err)
	}()
}

func Test_HandleConnection(t *testing.T) {
	initWSTest(t)
	closeCtx, cf := context.WithCancel(test.Ctx(t))
	wg := &sync.WaitGroup{}
	run(t, wg, createTestConn(t, "1", closeCtx.Done()))
	testHas(t, "1", 1)
	cf()
	wg.Wait()
	testHas(t, "1", 0)
}

func Test_HandleConnection_Subscribe(t *testing.T) {
	got := make(chan string, 1)
	wsService = NewWSConnKeeper(func(conn WsConn, id string) {
		got <- id
	})
	closeCtx, cf := context.WithCancel(test.Ctx(t))
	wg := &sync.WaitGroup{}
	run(t, wg, createTestConn(t, " 15 ", closeCtx.Done()))
	select {
	case id := <-got:
		assert.Equal(t, "15", id)
	case <-time.After(time.Second * 5):
		require.Fail(t, "no subscribe call")
	}
	testHas(t, "15", 1)
	cf()
	wg.Wait()
}

func testHas(t *testing.T, s string, i int) {
	t.Helper()
	ctx := test.Ctx(t)
	for {
		cn, ok := wsService.GetConnections(s)
		if ok == (i > 0) && len(cn) == i {
			break
		}
		select {
		case <-ctx.Done():
			require.Failf(t, "timeouted", "not found connection %s", s)
		case <-time.After(time.Millisecond * 20):
		}
	}
}

func Test_HandleConnection_Several(t *testing.T) {
	initWSTest(t)
	closeCtx, cf := context.WithCancel(test.Ctx(t))
	wg := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		run(t, wg, createTestConn(t, "1", closeCtx.Done()))
	}
	testHas(t, "1", 10)
	cf()
	wg.Wait()
}

func Test_HandleConnection_Cleans(t *testing.T) {
	initWSTest(t)
	closeCtx, cf := context.WithCancel(test.Ctx(t))
	wg := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		run(t, wg, createTestConn(t, fmt.Sprintf("%d", i), closeCtx.Done()))
	}
	for i := 0; i < 10; i++ {
		testHas(t, fmt.Sprintf("%d", i), 1)
	}
	cf()
	wg.Wait()
	for i := 0; i < 10; i++ {
		testHas(t, fmt.Sprintf("%d", i), 0)
	}
}

func Test_HandleConnection_Idle(t *testing.T) {
	initWSTest(t)
	wsService.idleTimeout = time.Millisecond * 50
	closeCtx, cf := context.WithCancel(test.Ctx(t))
	defer cf()
	err := wsService.HandleConnection(createTestConn(t, "1", closeCtx.Done()))
	assert.Nil(t, err)
	testHas(t, "1", 0)
}

func Test_syncConn_Writes(t *testing.T) {
	m := &mockWSConn{}
	m.On("WriteJSON", mock.Anything).Return(nil)
	c := &syncConn{WsConn: m}
	wg := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.WriteJSON("olia")
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, len(m.Calls))
}
