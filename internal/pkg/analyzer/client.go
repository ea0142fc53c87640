package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	aapi "github.com/airenas/meetscribe/internal/pkg/analyzer/api"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultModel     = "claude-haiku-4-5"
	defaultMaxTokens = 4096
	apiVersion       = "2023-06-01"
)

const systemPrompt = `You analyze meeting transcripts. Answer with a single JSON object only, no other text:
{"summary": "<short summary>",
 "action_items": [{"description": "", "assignee": "", "due_date": "", "priority": "low|medium|high"}],
 "decisions": [{"description": "", "owner": "", "context": "", "impact": ""}]}
Leave optional fields empty if the transcript does not mention them.`

// Client calls an LLM messages API to summarize a meeting
type Client struct {
	httpclient *http.Client
	url        string
	key        string
	model      string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewClient creates an analysis client, url is the messages endpoint
func NewClient(url, key, model string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("no analyzer url")
	}
	if timeout < 0 {
		return nil, fmt.Errorf("wrong timeout %s", timeout)
	}
	res := Client{url: url, key: key, model: model, timeout: timeout}
	if res.model == "" {
		res.model = defaultModel
	}
	if res.timeout == 0 {
		res.timeout = time.Minute * 2
	}
	res.httpclient = utils.NewHTTPClient()
	res.backoff = utils.NewSimpleBackoff
	goapp.Log.Info().Str("url", url).Str("model", res.model).Dur("timeout", res.timeout).Msg("analyzer")
	return &res, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesReq struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type messagesResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze extracts summary, action items and decisions from the transcript
func (sp *Client) Analyze(ctx context.Context, in *aapi.Input) (*aapi.Result, error) {
	if in == nil || strings.TrimSpace(in.Transcript) == "" {
		return nil, fmt.Errorf("no transcript")
	}
	body, err := json.Marshal(messagesReq{Model: sp.model, MaxTokens: defaultMaxTokens, System: systemPrompt,
		Messages: []message{{Role: "user", Content: makePrompt(in)}}})
	if err != nil {
		return nil, fmt.Errorf("can't marshal request: %w", err)
	}
	text, err := goapp.InvokeWithBackoff(ctx, func() (string, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.url, bytes.NewReader(body))
		if err != nil {
			return "", false, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("anthropic-version", apiVersion)
		if sp.key != "" {
			req.Header.Set("x-api-key", sp.key)
		}
		goapp.Log.Info().Str("url", req.URL.String()).Str("model", sp.model).Msg("call")
		resp, err := sp.httpclient.Do(req)
		if err != nil {
			return "", goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer utils.DrainClose(resp.Body)
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return "", goapp.IsRetryableCode(resp.StatusCode), err
		}
		var respData messagesResp
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return "", goapp.IsRetryableErr(err), fmt.Errorf("can't decode response: %w", err)
		}
		sb := strings.Builder{}
		for _, c := range respData.Content {
			if c.Type == "text" {
				sb.WriteString(c.Text)
			}
		}
		return sb.String(), false, nil
	}, sp.backoff())
	if err != nil {
		return nil, err
	}
	return parseResult(text)
}

func makePrompt(in *aapi.Input) string {
	transcript := in.SpeakerTranscript
	if strings.TrimSpace(transcript) == "" {
		transcript = in.Transcript
	}
	return "Here is the meeting transcript to analyze:\n\n" + transcript
}

// parseResult takes the JSON object from the model answer, the answer may be wrapped in text or a code fence
func parseResult(text string) (*aapi.Result, error) {
	from, to := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if from < 0 || to < from {
		return nil, fmt.Errorf("no JSON in response: '%s'", goapp.Sanitize(trim(text, 100)))
	}
	var res aapi.Result
	if err := json.Unmarshal([]byte(text[from:to+1]), &res); err != nil {
		return nil, fmt.Errorf("can't decode analysis: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("analysis error: %s", res.Error)
	}
	if strings.TrimSpace(res.Summary) == "" {
		return nil, fmt.Errorf("empty summary")
	}
	return &res, nil
}

func trim(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
