package result

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/test"
	"github.com/airenas/meetscribe/internal/pkg/test/mocks"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var (
	filerMock *mocks.Filer
	recMock   *recordingsMock
	tData     *Data
	tEcho     *echo.Echo
)

func initTest(t *testing.T) {
	t.Helper()
	filerMock = &mocks.Filer{}
	recMock = &recordingsMock{}
	tData = &Data{Reader: filerMock, Recordings: recMock}
	tEcho = initRoutes(tData)
	filerMock.On("LoadFile", mock.Anything, "1/transcript.txt").Return(newTestFile("olia", "transcript.txt"), nil)
	filerMock.On("LoadFile", mock.Anything, "1/a_b.wav").Return(newTestFile("audio", "a_b.wav"), nil)
	recMock.On("Get", mock.Anything, "1").Return(&persistence.Recording{ID: "1", OriginalFilename: "a b.wav",
		StoragePath: "1/a_b.wav", ContentType: sql.NullString{String: "audio/wav", Valid: true}}, nil)
}

func TestWrongPath(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/invalid", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func TestWrongMethod(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodPost, "/result/1/transcript.txt", nil)
	test.Code(t, tEcho, req, http.StatusMethodNotAllowed)
}

func TestResult(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/result/1/transcript.txt", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	assert.Equal(t, "olia", test.RStr(t, resp.Body))
	assert.Equal(t, "attachment; filename=transcript.txt", resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header().Get(echo.HeaderContentType))
}

func TestResult_UnknownFile(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/result/1/olia.txt", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
	filerMock.AssertNotCalled(t, "LoadFile", mock.Anything, mock.Anything)
}

func TestResult_NoFile(t *testing.T) {
	initTest(t)
	filerMock.On("LoadFile", mock.Anything, "2/transcript_speakers.txt").
		Return(nil, minio.ErrorResponse{StatusCode: http.StatusNotFound})
	req := httptest.NewRequest(http.MethodGet, "/result/2/transcript_speakers.txt", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func TestResult_Fails(t *testing.T) {
	initTest(t)
	filerMock.On("LoadFile", mock.Anything, "2/transcript.txt").Return(nil, fmt.Errorf("olia"))
	req := httptest.NewRequest(http.MethodGet, "/result/2/transcript.txt", nil)
	test.Code(t, tEcho, req, http.StatusInternalServerError)
}

func TestResultHead(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodHead, "/result/1/transcript.txt", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	assert.Equal(t, "", test.RStr(t, resp.Body))
	assert.Equal(t, "attachment; filename=transcript.txt", resp.Header().Get("Content-Disposition"))
}

func TestMedia(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/media/1", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	assert.Equal(t, "audio", test.RStr(t, resp.Body))
	assert.Equal(t, `attachment; filename="a b.wav"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "audio/wav", resp.Header().Get(echo.HeaderContentType))
}

func TestMediaHead(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodHead, "/media/1", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	assert.Equal(t, "", test.RStr(t, resp.Body))
}

func TestMedia_Fails(t *testing.T) {
	tests := []struct {
		name     string
		recErr   error
		fileErr  error
		wantCode int
	}{
		{name: "no recording", recErr: utils.ErrNotFound, wantCode: http.StatusNotFound},
		{name: "db fails", recErr: fmt.Errorf("olia"), wantCode: http.StatusInternalServerError},
		{name: "no file", fileErr: minio.ErrorResponse{StatusCode: http.StatusNotFound}, wantCode: http.StatusNotFound},
		{name: "filer fails", fileErr: fmt.Errorf("olia"), wantCode: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initTest(t)
			recMock.ExpectedCalls = nil
			filerMock.ExpectedCalls = nil
			if tt.recErr != nil {
				recMock.On("Get", mock.Anything, "1").Return(nil, tt.recErr)
			} else {
				recMock.On("Get", mock.Anything, "1").Return(&persistence.Recording{ID: "1", StoragePath: "1/a.wav"}, nil)
				filerMock.On("LoadFile", mock.Anything, "1/a.wav").Return(nil, tt.fileErr)
			}
			req := httptest.NewRequest(http.MethodGet, "/media/1", nil)
			test.Code(t, tEcho, req, tt.wantCode)
		})
	}
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
		{name: "OK", data: &Data{Reader: &mocks.Filer{}, Recordings: &recordingsMock{}}, wantErr: false},
		{name: "no reader", data: &Data{Recordings: &recordingsMock{}}, wantErr: true},
		{name: "no recordings", data: &Data{Reader: &mocks.Filer{}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.data)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

type recordingsMock struct{ mock.Mock }

func (m *recordingsMock) Get(ctx context.Context, id string) (*persistence.Recording, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*persistence.Recording); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type testFile struct {
	*bytes.Reader
	name string
}

func newTestFile(s, name string) *testFile {
	return &testFile{Reader: bytes.NewReader([]byte(s)), name: name}
}

func (f *testFile) Close() error {
	return nil
}

func (f *testFile) Stat() (fs.FileInfo, error) {
	return &testStat{size: f.Size(), name: f.name}, nil
}

type testStat struct {
	size int64
	name string
}

func (s *testStat) IsDir() bool        { return false }
func (s *testStat) ModTime() time.Time { return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC) }
func (s *testStat) Mode() fs.FileMode  { return 0 }
func (s *testStat) Name() string       { return s.name }
func (s *testStat) Size() int64        { return s.size }
func (s *testStat) Sys() any           { return nil }
