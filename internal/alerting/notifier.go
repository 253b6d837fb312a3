package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxstreaks/internal/report"
	"fxstreaks/internal/version"
)

// DefaultTopRows is how many report lines a notification quotes.
const DefaultTopRows = 5

// Notification announces a freshly written report.
type Notification struct {
	Date          time.Time
	Location      string
	Rows          []report.Row
	TopRows       int
	AdditionalMsg string
}

// Notifier delivers report announcements.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts announcements through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a notifier for one chat. A zero timeout defaults
// to ten seconds and an empty baseURL to the public Bot API.
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
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify sends the rendered message through sendMessage.
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
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("date", note.Date.Format(time.DateOnly)).
		Str("location", note.Location).
		Msg("report announced (Telegram)")
	return nil
}

// RenderMessage formats the notification as plain text.
func RenderMessage(note Notification) string {
	top := note.TopRows
	if top <= 0 {
		top = DefaultTopRows
	}

	builder := strings.Builder{}
	builder.WriteString("[FX Streaks Report]\n")
	builder.WriteString(fmt.Sprintf("Date: %s\n", note.Date.Format(time.DateOnly)))
	builder.WriteString(fmt.Sprintf("Location: %s\n", note.Location))
	builder.WriteString(fmt.Sprintf("Instruments ranked: %d\n", len(note.Rows)))
	for i, row := range note.Rows {
		if i == top {
			break
		}
		builder.WriteString(fmt.Sprintf("#%d %s avg %s%% over %s days (prev %s)\n",
			row.AvgConsPercChangeRank,
			row.Instrument,
			decimal.NewFromFloat(row.AvgConsPercChange).StringFixed(2),
			decimal.NewFromFloat(row.AvgConsPosDays).StringFixed(1),
			row.PrevDayRank,
		))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
