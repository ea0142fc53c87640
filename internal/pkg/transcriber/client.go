package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/align"
	tapi "github.com/airenas/meetscribe/internal/pkg/transcriber/api"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/cenkalti/backoff/v4"
)

const defaultModel = "whisper-1"

// errRejected is returned when the service refuses the request parameters
var errRejected = errors.New("request rejected")

// Client calls a whisper compatible speech to text service
type Client struct {
	httpclient *http.Client
	url        string
	key        string
	model      string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewClient creates a transcriber client
func NewClient(url, key, model string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("no transcriber url")
	}
	if timeout < 0 {
		return nil, fmt.Errorf("wrong timeout %s", timeout)
	}
	res := Client{url: url, key: key, model: model, timeout: timeout}
	if res.model == "" {
		res.model = defaultModel
	}
	if res.timeout == 0 {
		res.timeout = time.Minute * 10
	}
	res.httpclient = utils.NewHTTPClient()
	res.backoff = utils.NewSimpleBackoff
	goapp.Log.Info().Str("url", url).Str("model", res.model).Dur("timeout", res.timeout).Msg("transcriber")
	return &res, nil
}

type wordResp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type transcriptionResp struct {
	Text     string     `json:"text"`
	Duration *float64   `json:"duration"`
	Words    []wordResp `json:"words"`
}

// Transcribe sends media for recognition. Word timestamps are requested first,
// if the service rejects it, the call is repeated without them.
func (sp *Client) Transcribe(ctx context.Context, media *tapi.Media) (*tapi.Result, error) {
	if media == nil || len(media.Data) == 0 {
		return nil, fmt.Errorf("no media")
	}
	res, err := sp.invoke(ctx, media, true)
	if errors.Is(err, errRejected) {
		goapp.Log.Warn().Err(err).Msg("word timestamps not supported, retry without them")
		res, err = sp.invoke(ctx, media, false)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (sp *Client) invoke(ctx context.Context, media *tapi.Media, words bool) (*tapi.Result, error) {
	body, contentType, err := sp.makeBody(media, words)
	if err != nil {
		return nil, err
	}
	return goapp.InvokeWithBackoff(ctx, func() (*tapi.Result, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.url, bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Content-Type", contentType)
		if sp.key != "" {
			req.Header.Set("Authorization", "Bearer "+sp.key)
		}
		goapp.Log.Info().Str("url", req.URL.String()).Bool("words", words).Int("bytes", len(media.Data)).Msg("call")
		resp, err := sp.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer utils.DrainClose(resp.Body)
		if words && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity) {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1000))
			return nil, false, fmt.Errorf("%w: %d, %s", errRejected, resp.StatusCode, goapp.Sanitize(string(b)))
		}
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return nil, goapp.IsRetryableCode(resp.StatusCode), err
		}
		var respData transcriptionResp
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't decode response: %w", err)
		}
		return toResult(&respData), false, nil
	}, sp.backoff())
}

func (sp *Client) makeBody(media *tapi.Media, words bool) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	name := media.Name
	if name == "" {
		name = "audio"
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("can't add file to request: %w", err)
	}
	if _, err = part.Write(media.Data); err != nil {
		return nil, "", fmt.Errorf("can't add file content to request: %w", err)
	}
	params := [][2]string{{"model", sp.model}, {"response_format", "verbose_json"}}
	if words {
		params = append(params, [2]string{"timestamp_granularities[]", "word"})
	}
	for _, p := range params {
		if err := writer.WriteField(p[0], p[1]); err != nil {
			return nil, "", fmt.Errorf("can't add param: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("can't close multipart: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

func toResult(resp *transcriptionResp) *tapi.Result {
	res := &tapi.Result{Text: resp.Text, Duration: resp.Duration}
	for _, w := range resp.Words {
		res.Words = append(res.Words, align.Word{Text: w.Word, Start: w.Start, End: w.End})
	}
	return res
}
