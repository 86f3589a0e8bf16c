// Package telegram is a minimal Telegram Bot API client covering the
// methods the approval bot needs.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

const DefaultAPIURL = "https://api.telegram.org"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

type ClientConfig struct {
	Token string
	// APIURL defaults to DefaultAPIURL.
	APIURL string
	// HTTPClient defaults to a client with a 75s timeout, enough for long polls.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	api := cfg.APIURL
	if api == "" {
		api = DefaultAPIURL
	}
	if _, err := url.Parse(api); err != nil {
		return nil, fmt.Errorf("telegram: invalid API URL %q: %w", api, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 75 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(api, "/") + "/bot" + cfg.Token,
		httpClient: hc,
		log:        log.Named("telegram"),
	}, nil
}

// Send posts text to chatID with an optional inline keyboard and returns
// the new message id.
func (c *Client) Send(ctx context.Context, chatID int64, text string, kb *types.Keyboard) (int64, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboardMarkup(kb),
	}, &msg)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (c *Client) Delete(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", deleteMessageRequest{ChatID: chatID, MessageID: messageID}, nil)
}

// AnswerCallback acknowledges a button press; text, when set, is shown
// to the user as a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text}, nil)
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var ups []Update
	err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: []string{"message", "callback_query"},
	}, &ups)
	return ups, err
}

func (c *Client) call(ctx context.Context, method string, body, result any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("telegram: encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("telegram: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the request URL, which embeds the token.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram: unexpected %d response from %s: %s", resp.StatusCode, method, truncate(raw, 256))
	}
	if !env.OK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		c.log.Debug("api error", zap.String("method", method), zap.Int("code", code), zap.String("description", env.Description))
		return &APIError{Method: method, Code: code, Description: env.Description}
	}
	if result == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("telegram: decode %s result: %w", method, err)
	}
	return nil
}

func keyboardMarkup(kb *types.Keyboard) *InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	m := &InlineKeyboardMarkup{InlineKeyboard: make([][]InlineKeyboardButton, 0, len(kb.Rows))}
	for _, row := range kb.Rows {
		r := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, r)
	}
	return m
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
