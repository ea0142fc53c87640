package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vgarvardt/gue/v5"
)

type testMsg struct {
	ID string `json:"id"`
}

type testData struct {
	err   error
	calls int
	got   string
	ctxOK bool
}

func handle(ctx context.Context, m *testMsg, d *testData) error {
	d.calls++
	d.got = m.ID
	_, d.ctxOK = ctx.Deadline()
	return d.err
}

func TestCreate(t *testing.T) {
	d := &testData{}
	f := Create(d, handle, DefaultOpts[testMsg]())
	err := f(context.Background(), &gue.Job{Args: []byte(`{"id":"olia"}`)})
	assert.Nil(t, err)
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, "olia", d.got)
	assert.True(t, d.ctxOK)
}

func TestCreate_WrongJSON_Drops(t *testing.T) {
	d := &testData{}
	f := Create(d, handle, DefaultOpts[testMsg]())
	err := f(context.Background(), &gue.Job{Args: []byte(`{"id":`)})
	assert.Nil(t, err)
	assert.Equal(t, 0, d.calls)
}

func TestCreate_Retries(t *testing.T) {
	tests := []struct {
		name      string
		errCount  int32
		opts      *Opts[testMsg]
		wantRetry bool
	}{
		{name: "retry", errCount: 0, opts: DefaultOpts[testMsg]().WithBackoff(NoBackoff()), wantRetry: true},
		{name: "retry last", errCount: 2, opts: DefaultOpts[testMsg](), wantRetry: true},
		{name: "exhausted", errCount: 3, opts: DefaultOpts[testMsg](), wantRetry: false},
		{name: "no retry", errCount: 0, opts: DefaultOpts[testMsg]().WithFailure(NoRetry[testMsg]()), wantRetry: false},
		{name: "handler fails", errCount: 1, opts: DefaultOpts[testMsg]().WithFailure(
			func(context.Context, *testMsg, error, *gue.Job) (bool, time.Duration, error) {
				return false, 0, fmt.Errorf("olia")
			}), wantRetry: true},
		{name: "handler fails too many", errCount: maxHandlerFailures, opts: DefaultOpts[testMsg]().WithFailure(
			func(context.Context, *testMsg, error, *gue.Job) (bool, time.Duration, error) {
				return false, 0, fmt.Errorf("olia")
			}), wantRetry: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &testData{err: fmt.Errorf("fail")}
			f := Create(d, handle, tt.opts)
			err := f(context.Background(), &gue.Job{Args: []byte(`{"id":"1"}`), ErrorCount: tt.errCount})
			assert.Equal(t, tt.wantRetry, err != nil)
		})
	}
}

func TestCreate_Timeout(t *testing.T) {
	d := &testData{}
	f := Create(d, func(ctx context.Context, m *testMsg, d *testData) error {
		<-ctx.Done()
		return ctx.Err()
	}, DefaultOpts[testMsg]().WithTimeout(time.Millisecond*10).WithFailure(NoRetry[testMsg]()))
	err := f(context.Background(), &gue.Job{Args: []byte(`{"id":"1"}`)})
	assert.Nil(t, err)
}

func TestCreate_PanicsNoOpts(t *testing.T) {
	assert.Panics(t, func() { Create[testMsg](&testData{}, handle, nil) })
}

func TestFullJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := fullJitter(time.Second)
		assert.True(t, v >= 0 && v < time.Second)
	}
	assert.Equal(t, time.Duration(0), NoBackoff()(10))
	assert.True(t, DefaultBackoffOrTest(false)(1) < time.Second*10)
	assert.Equal(t, time.Duration(0), DefaultBackoffOrTest(true)(1))
}
