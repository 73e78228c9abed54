package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramNotifier creates the bot on first use because the library calls
// getMe while constructing it.
type telegramNotifier struct {
	token    string
	chatID   int64
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func newTelegramNotifier(token string, chatID int64, apiURL string, client *http.Client) *telegramNotifier {
	endpoint := tgbotapi.APIEndpoint
	if apiURL = strings.TrimSuffix(strings.TrimSpace(apiURL), "/"); apiURL != "" {
		endpoint = apiURL + "/bot%s/%s"
	}
	return &telegramNotifier{token: token, chatID: chatID, endpoint: endpoint, client: client}
}

func (t *telegramNotifier) name() string { return "telegram" }

func (t *telegramNotifier) send(ctx context.Context, data message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.botAPI()
	if err != nil {
		return err
	}
	text := data.body
	if data.title != "" {
		text = data.title + "\n" + data.body
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	msg.DisableNotification = data.priority == "low"
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func (t *telegramNotifier) botAPI() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}
