package dingsdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDingSdk_Notify(t *testing.T) {
	received := make(chan DingNotify, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var notify DingNotify
		_ = json.Unmarshal(body, &notify)
		received <- notify
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer server.Close()

	sdk := NewDingSdk(server.URL, zerolog.Nop())
	sdk.Notify("Trade successful")
	notify := <-received
	assert.Equal(t, "text", notify.MsgType)
	assert.Equal(t, "Trade successful", notify.Text.Content)
	assert.False(t, notify.At.IsAtAll)
}

func TestDingSdk_SendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":310000,"errmsg":"keywords not in content"}`))
	}))
	defer server.Close()
	sdk := NewDingSdk(server.URL, zerolog.Nop())
	_, err := sdk.Send(context.Background(), &DingNotify{MsgType: "text"})
	assert.Error(t, err)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	_, err = NewDingSdk(failing.URL, zerolog.Nop()).Send(context.Background(), &DingNotify{MsgType: "text"})
	assert.Error(t, err)
}

func TestDingSdk_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer server.Close()
	result, err := NewDingSdk(server.URL, zerolog.Nop()).Send(context.Background(), &DingNotify{MsgType: "text"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.ErrMsg)
}

func TestNotifiers_WithoutWebhook(t *testing.T) {
	var notifier Notifier = NewDingSdk("", zerolog.Nop())
	notifier.Notify("nothing is sent")
	notifier = NewLogNotifier(zerolog.Nop())
	notifier.Notify("only logged")
}
