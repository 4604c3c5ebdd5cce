package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification 封装一次价格异动的上下文。
type Notification struct {
	At            time.Time
	CurrencyID    string
	Symbol        string
	Name          string
	Price         decimal.Decimal
	Change24h     decimal.Decimal
	ThresholdPct  decimal.Decimal
	Direction     string
	AdditionalMsg string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("currency", note.CurrencyID).
		Str("direction", note.Direction).
		Str("change_pct", note.Change24h.StringFixed(2)).
		Msg("price alert sent (telegram)")
	return nil
}

// WriterNotifier prints alerts to a terminal, ringing the bell when sound is on.
type WriterNotifier struct {
	mu    sync.Mutex
	out   io.Writer
	sound func() bool
}

// NewWriterNotifier builds a notifier; sound may be nil for a silent one.
func NewWriterNotifier(out io.Writer, sound func() bool) *WriterNotifier {
	return &WriterNotifier{out: out, sound: sound}
}

// Notify writes a single-line alert.
func (n *WriterNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	line := fmt.Sprintf("ALERT %s %s %s%% (threshold %s%%) price %s\n",
		note.Symbol, note.Direction, signed(note.Change24h), note.ThresholdPct.StringFixed(0), note.Price.String())
	if n.sound != nil && n.sound() {
		line = "\a" + line
	}
	_, err := io.WriteString(n.out, line)
	return err
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers to all notifiers even if some fail.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RenderMessage formats a notification as multi-line text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Currency Alert]\n")
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.At.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Currency: %s (%s)\n", note.Name, note.Symbol))
	builder.WriteString(fmt.Sprintf("Price: %s USD\n", note.Price.String()))
	builder.WriteString(fmt.Sprintf("24h change: %s%% (threshold %s%%)\n", signed(note.Change24h), note.ThresholdPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*WriterNotifier)(nil)
	_ Notifier = Multi(nil)
)
