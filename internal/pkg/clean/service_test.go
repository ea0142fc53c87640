package clean

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airenas/meetscribe/internal/pkg/test"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var (
	cleanerMock *mockCleaner
	deleterMock *mockDeleter
	tData       *Data
	tEcho       *echo.Echo
)

func initTest(t *testing.T) {
	t.Helper()
	cleanerMock = newCleanMock(false)
	deleterMock = &mockDeleter{}
	deleterMock.On("Delete", mock.Anything, "1").Return(true, nil)
	tData = &Data{Cleaner: cleanerMock, Recordings: deleterMock}
	tEcho = initRoutes(tData)
}

func TestWrongPath(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/invalid", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func TestWrongMethod(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodPost, "/delete/1", nil)
	test.Code(t, tEcho, req, http.StatusMethodNotAllowed)
}

func TestClean(t *testing.T) {
	for _, path := range []string{"/delete/1", "/recordings/1"} {
		t.Run(path, func(t *testing.T) {
			initTest(t)
			req := httptest.NewRequest(http.MethodDelete, path, nil)
			resp := test.Code(t, tEcho, req, http.StatusOK)
			res := test.Decode[deleteResult](t, resp.Result())
			assert.Equal(t, "Recording deleted", res.Message)
			deleterMock.AssertCalled(t, "Delete", mock.Anything, "1")
			cleanerMock.AssertCalled(t, "Clean", mock.Anything, "1")
		})
	}
}

func TestClean_NotFound(t *testing.T) {
	initTest(t)
	deleterMock.On("Delete", mock.Anything, "2").Return(false, nil)
	req := httptest.NewRequest(http.MethodDelete, "/delete/2", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
	cleanerMock.AssertNotCalled(t, "Clean", mock.Anything, mock.Anything)
}

func TestClean_DeleteFails(t *testing.T) {
	initTest(t)
	deleterMock.On("Delete", mock.Anything, "2").Return(false, errors.New("olia"))
	req := httptest.NewRequest(http.MethodDelete, "/delete/2", nil)
	test.Code(t, tEcho, req, http.StatusInternalServerError)
	cleanerMock.AssertNotCalled(t, "Clean", mock.Anything, mock.Anything)
}

func TestClean_Fails(t *testing.T) {
	initTest(t)
	tData.Cleaner = newCleanMock(true)
	tEcho = initRoutes(tData)
	req := httptest.NewRequest(http.MethodDelete, "/delete/1", nil)
	test.Code(t, tEcho, req, http.StatusInternalServerError)
}

func TestLive(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	test.Code(t, tEcho, req, http.StatusOK)
}

func Test_validate(t *testing.T) {
	tests := []struct {
		name    string
		data    *Data
		wantErr bool
	}{
		{name: "OK", data: &Data{Cleaner: newCleanMock(false), Recordings: &mockDeleter{}}, wantErr: false},
		{name: "Fail Cleaner", data: &Data{Recordings: &mockDeleter{}}, wantErr: true},
		{name: "Fail Deleter", data: &Data{Cleaner: newCleanMock(false)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validate(tt.data); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type mockCleaner struct{ mock.Mock }

func (m *mockCleaner) Clean(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newCleanMock(fail bool) *mockCleaner {
	res := &mockCleaner{}
	var err error
	if fail {
		err = errors.New("olia")
	}
	res.On("Clean", mock.Anything, mock.Anything).Return(err)
	return res
}

type mockDeleter struct{ mock.Mock }

func (m *mockDeleter) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
