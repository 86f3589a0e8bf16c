package telegram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	"github.com/BrandonDHaskell/budgetbot/internal/telegram"
)

// fakeAPI serves Bot API methods from per-method handlers and records the
// decoded request bodies.
type fakeAPI struct {
	mu       sync.Mutex
	requests map[string][]map[string]any
	replies  map[string]string
}

func newFakeAPI(t *testing.T, replies map[string]string) (*fakeAPI, *telegram.Client) {
	t.Helper()
	api := &fakeAPI{requests: map[string][]map[string]any{}, replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)

	c, err := telegram.NewClient(telegram.ClientConfig{
		Token:  "123:abc",
		APIURL: srv.URL,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return api, c
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	const prefix = "/bot123:abc/"
	if len(r.URL.Path) <= len(prefix) || r.URL.Path[:len(prefix)] != prefix {
		http.NotFound(w, r)
		return
	}
	method := r.URL.Path[len(prefix):]

	body, _ := io.ReadAll(r.Body)
	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)

	f.mu.Lock()
	f.requests[method] = append(f.requests[method], decoded)
	reply, ok := f.replies[method]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func (f *fakeAPI) last(method string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.requests[method]
	if len(rs) == 0 {
		return nil
	}
	return rs[len(rs)-1]
}

func TestSend_ReturnsMessageIDAndEncodesKeyboard(t *testing.T) {
	api, c := newFakeAPI(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":77,"chat":{"id":5,"type":"private"},"date":1}}`,
	})

	id, err := c.Send(context.Background(), 5, "hello", types.PaymentKeyboard(9))
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)

	req := api.last("sendMessage")
	require.NotNil(t, req)
	assert.Equal(t, float64(5), req["chat_id"])
	assert.Equal(t, "hello", req["text"])
	markup := req["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	btn := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "payment_9", btn["callback_data"])
}

func TestSend_WithoutKeyboardOmitsMarkup(t *testing.T) {
	api, c := newFakeAPI(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":1,"chat":{"id":5,"type":"private"},"date":1}}`,
	})
	_, err := c.Send(context.Background(), 5, "plain", nil)
	require.NoError(t, err)
	_, has := api.last("sendMessage")["reply_markup"]
	assert.False(t, has)
}

func TestDelete_APIError(t *testing.T) {
	_, c := newFakeAPI(t, map[string]string{
		"deleteMessage": `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`,
	})

	err := c.Delete(context.Background(), 5, 1)
	var apiErr *telegram.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "deleteMessage", apiErr.Method)
	assert.True(t, telegram.IsAPIError(err, 400))
}

func TestCall_NonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}))
	t.Cleanup(srv.Close)

	c, err := telegram.NewClient(telegram.ClientConfig{Token: "t", APIURL: srv.URL})
	require.NoError(t, err)
	err = c.AnswerCallback(context.Background(), "cb", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected 502")
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := telegram.NewClient(telegram.ClientConfig{})
	assert.Error(t, err)
}

func TestGetUpdates_DecodesCallbacks(t *testing.T) {
	api, c := newFakeAPI(t, map[string]string{
		"getUpdates": `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"from":{"id":7,"is_bot":false,"first_name":"A","username":"alice"},"chat":{"id":7,"type":"private"},"date":1,"text":"/start"}},
			{"update_id":11,"callback_query":{"id":"q1","from":{"id":8,"is_bot":false,"first_name":"B"},"data":"payment_3"}}
		]}`,
	})

	ups, err := c.GetUpdates(context.Background(), 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, ups, 2)
	assert.Equal(t, "/start", ups[0].Message.Text)
	assert.Equal(t, "alice", ups[0].Message.From.Username)
	assert.Equal(t, "payment_3", ups[1].CallbackQuery.Data)
	assert.Equal(t, float64(30), api.last("getUpdates")["timeout"])
}
