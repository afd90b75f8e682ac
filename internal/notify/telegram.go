// Package notify publishes finished card analyses to chat channels.
package notify

import (
	"context"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MaxMessageLen is Telegram's limit on one message, in characters.
const MaxMessageLen = 4096

// Sender sends one Telegram message. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts text reports to one chat.
type Telegram struct {
	sender Sender
	chatID int64
}

// NewTelegram authenticates the bot token and returns a publisher for chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, eris.New("notify: telegram token is required")
	}
	if chatID == 0 {
		return nil, eris.New("notify: telegram chat_id is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, eris.Wrap(err, "notify: create telegram bot")
	}
	return NewTelegramWithSender(bot, chatID), nil
}

// NewTelegramWithSender returns a publisher that sends through s.
func NewTelegramWithSender(s Sender, chatID int64) *Telegram {
	return &Telegram{sender: s, chatID: chatID}
}

// Publish sends text, split into as many messages as the length limit
// requires. It stops at the first failure or when ctx is done.
func (t *Telegram) Publish(ctx context.Context, text string) error {
	chunks := Split(text, MaxMessageLen)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "notify: publish canceled")
		}
		msg := tgbotapi.NewMessage(t.chatID, chunk)
		msg.DisableWebPagePreview = true
		if _, err := t.sender.Send(msg); err != nil {
			return eris.Wrapf(err, "notify: send telegram message %d/%d", i+1, len(chunks))
		}
	}
	zap.L().Info("notify: published to telegram",
		zap.Int64("chat_id", t.chatID),
		zap.Int("messages", len(chunks)),
	)
	return nil
}

// Split breaks text into chunks of at most limit characters, preferring
// line boundaries.
func Split(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		// A single line longer than the limit is cut by characters.
		for n > limit {
			r := []rune(line)
			chunks = append(chunks, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}
