package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramGateway struct {
	Bot      *tgbotapi.BotAPI
	Commands *Commands
	// AllowedChats limits who may trigger runs. Empty allows everyone.
	AllowedChats map[int64]bool
}

func NewTelegramGateway(token string, commands *Commands, allowed []int64) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	tg := &TelegramGateway{
		Bot:          bot,
		Commands:     commands,
		AllowedChats: make(map[int64]bool),
	}
	for _, id := range allowed {
		tg.AllowedChats[id] = true
	}
	return tg, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		chatID := update.Message.Chat.ID
		if len(tg.AllowedChats) > 0 && !tg.AllowedChats[chatID] {
			log.Printf("[Telegram] Ignoring message from chat %d", chatID)
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		response := tg.Commands.Handle(context.Background(), update.Message.Text)
		msg := tgbotapi.NewMessage(chatID, response)
		if _, err := tg.Bot.Send(msg); err != nil {
			log.Printf("[Telegram] Send failed: %v", err)
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
