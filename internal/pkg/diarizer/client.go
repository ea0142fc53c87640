package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/align"
	tapi "github.com/airenas/meetscribe/internal/pkg/transcriber/api"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/cenkalti/backoff/v4"
)

// Client calls a speaker diarization service
type Client struct {
	httpclient *http.Client
	url        string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

type segmentsResp struct {
	Segments []align.Segment `json:"segments"`
}

// NewClient creates a diarization client, url is the full endpoint
func NewClient(url string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("no diarizer url")
	}
	if timeout < 0 {
		return nil, fmt.Errorf("wrong timeout %s", timeout)
	}
	res := Client{url: url, timeout: timeout}
	if res.timeout == 0 {
		res.timeout = time.Minute * 10
	}
	res.httpclient = utils.NewHTTPClient()
	res.backoff = utils.NewSimpleBackoff
	return &res, nil
}

// Diarize returns speaker segments of the media
func (sp *Client) Diarize(ctx context.Context, media *tapi.Media) ([]align.Segment, error) {
	if media == nil || len(media.Data) == 0 {
		return nil, fmt.Errorf("no media")
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", media.Name)
	if err != nil {
		return nil, fmt.Errorf("can't add file to request: %w", err)
	}
	if _, err = part.Write(media.Data); err != nil {
		return nil, fmt.Errorf("can't add file content to request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("can't close multipart: %w", err)
	}
	data := body.Bytes()

	return goapp.InvokeWithBackoff(ctx, func() ([]align.Segment, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.url, bytes.NewReader(data))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		goapp.Log.Info().Str("url", req.URL.String()).Msg("call")
		resp, err := sp.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer utils.DrainClose(resp.Body)
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return nil, goapp.IsRetryableCode(resp.StatusCode), err
		}
		var respData segmentsResp
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't decode response: %w", err)
		}
		if respData.Segments == nil {
			respData.Segments = []align.Segment{}
		}
		return respData.Segments, false, nil
	}, sp.backoff())
}
