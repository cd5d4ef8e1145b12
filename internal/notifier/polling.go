package notifier

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(command string) string

const pollRetryDelay = 5 * time.Second

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls getUpdates and answers commands from the
// configured chat. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	timeout := t.PollTimeout
	if timeout <= 0 {
		timeout = 30
	}
	client := &http.Client{Timeout: time.Duration(timeout+5) * time.Second}
	if t.Client != nil {
		client.Transport = t.Client.Transport
	}

	offset := 0
	for ctx.Err() == nil {
		var updates []telegramUpdate
		err := t.call(ctx, client, "getUpdates", map[string]int{"offset": offset, "timeout": timeout}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[WARN] polling failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if reply := t.dispatch(u, handler); reply != "" {
				if err := t.send(ctx, reply); err != nil {
					log.Printf("[ERROR] send reply: %v", err)
				}
			}
		}
	}
	log.Println("[INFO] Telegram polling stopped")
}

func (t *TelegramNotifier) dispatch(u telegramUpdate, handler CommandHandler) string {
	if u.Message == nil || u.Message.Text == "" {
		return ""
	}
	if from := strconv.FormatInt(u.Message.Chat.ID, 10); u.Message.Chat.ID != 0 && from != t.ChatID {
		log.Printf("[WARN] ignoring command from chat %s", from)
		return ""
	}
	cmd := strings.TrimSpace(u.Message.Text)
	log.Printf("[INFO] received command: %s", cmd)
	return handler(cmd)
}
