package consul

import (
	"fmt"
	"testing"

	"github.com/airenas/meetscribe/internal/pkg/align"
	"github.com/airenas/meetscribe/internal/pkg/test"
	"github.com/airenas/meetscribe/internal/pkg/test/mocks"
	tapi "github.com/airenas/meetscribe/internal/pkg/transcriber/api"
	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newEntry(port int, meta map[string]string) *api.ServiceEntry {
	return &api.ServiceEntry{Service: &api.AgentService{Service: "diarizer", Port: port, Address: "srv", Meta: meta}}
}

func Test_Diarize_empty(t *testing.T) {
	p := newProvider(nil, "diarizer")
	r, err := p.Diarize(test.Ctx(t), &tapi.Media{})
	assert.Nil(t, r)
	assert.NotNil(t, err)
}

func Test_Diarize_existing(t *testing.T) {
	p := newProvider(nil, "diarizer")
	d := &mocks.Diarizer{}
	d.On("Diarize", mock.Anything, mock.Anything).Return([]align.Segment{{Start: 0, End: 1, Speaker: "S1"}}, nil)
	p.srvs = append(p.srvs, &srvWrap{real: d, srv: "olia", priority: 1})
	r, err := p.Diarize(test.Ctx(t), &tapi.Media{})
	require.Nil(t, err)
	assert.Equal(t, []align.Segment{{Start: 0, End: 1, Speaker: "S1"}}, r)
	d.AssertNumberOfCalls(t, "Diarize", 1)
}

func Test_get_by_priority(t *testing.T) {
	p := newProvider(nil, "diarizer")
	d := &mocks.Diarizer{}
	d1 := &mocks.Diarizer{}
	p.srvs = append(p.srvs, &srvWrap{real: d, srv: "olia", priority: 1})
	p.srvs = append(p.srvs, &srvWrap{real: d1, srv: "olia1", priority: 1})
	got := map[string]int{}
	for i := 0; i < 200; i++ {
		r, name, err := p.get()
		require.Nil(t, err)
		require.NotNil(t, r)
		got[name]++
	}
	assert.Greater(t, got["olia"], 0)
	assert.Greater(t, got["olia1"], 0)
}

func Test_get_wrong_priority(t *testing.T) {
	p := newProvider(nil, "diarizer")
	p.srvs = append(p.srvs, &srvWrap{real: &mocks.Diarizer{}, srv: "olia"})
	p.srvs = append(p.srvs, &srvWrap{real: &mocks.Diarizer{}, srv: "olia1"})
	_, _, err := p.get()
	assert.NotNil(t, err)
}

func Test_getRandomByPriority(t *testing.T) {
	for i := 0; i < 100; i++ {
		v, err := getRandomByPriority([]*srvWrap{{priority: 0}, {priority: 2}, {priority: 0}})
		require.Nil(t, err)
		assert.Equal(t, 1, v)
	}
}

func TestProvider_updateSrv_no_meta(t *testing.T) {
	p := newProvider(nil, "diarizer")
	err := p.updateSrv([]*api.ServiceEntry{newEntry(80, map[string]string{})})
	assert.NotNil(t, err)
	assert.Equal(t, 0, len(p.srvs))
}

func TestProvider_updateSrv_wrong_priority(t *testing.T) {
	p := newProvider(nil, "diarizer")
	err := p.updateSrv([]*api.ServiceEntry{newEntry(80, map[string]string{diarizeKey: "diarize", priorityKey: "100"})})
	assert.NotNil(t, err)
	assert.Equal(t, 0, len(p.srvs))
}

func TestProvider_updateSrv_adds(t *testing.T) {
	p := newProvider(nil, "diarizer")
	err := p.updateSrv([]*api.ServiceEntry{newEntry(80, map[string]string{diarizeKey: "diarize", priorityKey: "2"})})
	assert.Nil(t, err)
	require.Equal(t, 1, len(p.srvs))
	assert.Equal(t, 2.0, p.srvs[0].priority)
	assert.Equal(t, "srv:80", p.srvs[0].srv)
}

func TestProvider_updateSrv_addsSame(t *testing.T) {
	p := newProvider(nil, "diarizer")
	err := p.updateSrv([]*api.ServiceEntry{newEntry(80, map[string]string{diarizeKey: "diarize"})})
	assert.Nil(t, err)
	cp := p.srvs[0]
	err = p.updateSrv([]*api.ServiceEntry{newEntry(80, map[string]string{diarizeKey: "diarize"})})
	assert.Nil(t, err)
	require.Equal(t, 1, len(p.srvs))
	assert.Equal(t, fmt.Sprintf("%p", cp), fmt.Sprintf("%p", p.srvs[0]))
}

func TestProvider_updateSrv_updates(t *testing.T) {
	p := newProvider(nil, "diarizer")
	err := p.updateSrv([]*api.ServiceEntry{newEntry(80, map[string]string{diarizeKey: "diarize"})})
	assert.Nil(t, err)
	cp := p.srvs[0]
	err = p.updateSrv([]*api.ServiceEntry{newEntry(80, map[string]string{diarizeKey: "v2/diarize"})})
	assert.Nil(t, err)
	require.Equal(t, 1, len(p.srvs))
	assert.NotEqual(t, fmt.Sprintf("%p", cp), fmt.Sprintf("%p", p.srvs[0]))
}

func TestProvider_updateSrv_drops(t *testing.T) {
	p := newProvider(nil, "diarizer")
	meta := map[string]string{diarizeKey: "diarize"}
	err := p.updateSrv([]*api.ServiceEntry{newEntry(80, meta), newEntry(81, meta), newEntry(82, meta)})
	assert.Nil(t, err)
	require.Equal(t, 3, len(p.srvs))
	err = p.updateSrv([]*api.ServiceEntry{newEntry(82, meta), newEntry(80, meta)})
	assert.Nil(t, err)
	require.Equal(t, 2, len(p.srvs))
	names := []string{p.srvs[0].srv, p.srvs[1].srv}
	assert.ElementsMatch(t, []string{"srv:80", "srv:82"}, names)
}

func Test_getURL(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
		want string
	}{
		{name: "http", meta: map[string]string{diarizeKey: "diarize"}, want: "http://srv:80/diarize"},
		{name: "slash", meta: map[string]string{diarizeKey: "/diarize"}, want: "http://srv:80/diarize"},
		{name: "https", meta: map[string]string{diarizeKey: "diarize", isHTTPSSLKey: "true"}, want: "https://srv:80/diarize"},
		{name: "no https", meta: map[string]string{diarizeKey: "diarize", isHTTPSSLKey: "olia"}, want: "http://srv:80/diarize"},
		{name: "none", meta: map[string]string{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getURL(newEntry(80, tt.meta), diarizeKey))
		})
	}
}
