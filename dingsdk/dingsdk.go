package dingsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/egaotan/solana-stateless-swap/metrics"
	"github.com/rs/zerolog"
)

// Notifier delivers one human readable message to whoever operates the service.
type Notifier interface {
	Notify(message string)
}

type DingContent struct {
	Content string `json:"content"`
}
type DingAt struct {
	IsAtAll bool `json:"isAtAll"`
}
type DingNotify struct {
	MsgType string      `json:"msgtype"`
	Text    DingContent `json:"text"`
	At      DingAt      `json:"at"`
}

type DingResult struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type DingSdk struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewDingSdk(url string, log zerolog.Logger) *DingSdk {
	sdk := &DingSdk{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
	return sdk
}

// Notify sends message as a text robot message. Delivery errors are only logged.
func (sdk *DingSdk) Notify(message string) {
	metrics.NotificationsTotal.Inc()
	sdk.log.Info().Str("message", message).Msg("notify")
	if sdk.url == "" {
		return
	}
	dingNotify := &DingNotify{
		MsgType: "text",
		Text: DingContent{
			Content: message,
		},
		At: DingAt{
			IsAtAll: false,
		},
	}
	if _, err := sdk.Send(context.Background(), dingNotify); err != nil {
		sdk.log.Warn().Err(err).Msg("ding notify")
	}
}

func (sdk *DingSdk) Send(ctx context.Context, notify *DingNotify) (*DingResult, error) {
	requestJson, err := json.Marshal(notify)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sdk.url, bytes.NewReader(requestJson))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accepts", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := sdk.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("response status code: %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	dingResult := new(DingResult)
	err = json.Unmarshal(respBody, dingResult)
	if err != nil {
		return nil, err
	}
	if dingResult.ErrCode != 0 || dingResult.ErrMsg != "ok" {
		return nil, fmt.Errorf("code: %d, err: %s", dingResult.ErrCode, dingResult.ErrMsg)
	}
	return dingResult, nil
}

// LogNotifier only writes messages to a log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(message string) {
	metrics.NotificationsTotal.Inc()
	n.log.Info().Str("message", message).Msg("notify")
}
