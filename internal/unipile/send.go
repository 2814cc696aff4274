package unipile

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"chatmate/internal/schedule"
	logx "chatmate/pkg/logx"
)

var _ schedule.Backend = (*Client)(nil)

type sendResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	Timestamp string `json:"timestamp"`
}

func (c *Client) sentAt(r sendResponse) string {
	if r.Timestamp != "" {
		return r.Timestamp
	}
	return c.now().UTC().Format(time.RFC3339)
}

// cleanPhone strips formatting and the leading plus sign.
func cleanPhone(phone string) string {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "").Replace(strings.TrimSpace(phone))
	return strings.TrimPrefix(s, "+")
}

// SendToNumber starts (or continues) a one-to-one chat with phone.
func (c *Client) SendToNumber(ctx context.Context, phone, content string) (schedule.Receipt, error) {
	digits := cleanPhone(phone)
	if digits == "" {
		return nil, errors.New("phone number is empty")
	}
	attendee := digits + "@s.whatsapp.net"
	log := c.log.With(logx.String("to", "+"+digits))

	var resp sendResponse
	err := c.do(ctx, http.MethodPost, "/chats", nil, form{
		"account_id":    c.cfg.AccountID,
		"text":          content,
		"attendees_ids": attendee,
	}, &resp)
	if err == nil {
		id := resp.ID
		if id == "" {
			id = resp.ChatID
		}
		log.Debug("message sent via new chat", logx.String("chat", resp.ChatID))
		return schedule.Receipt{
			"messageId":   id,
			"chatId":      resp.ChatID,
			"phoneNumber": "+" + digits,
			"sentAt":      c.sentAt(resp),
			"endpoint":    "POST /chats",
		}, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ChatID() != "" {
		chatID := apiErr.ChatID()
		log.Debug("chat creation refused; retrying on existing chat", logx.String("chat", chatID), logx.Err(err))
		var resp2 sendResponse
		err2 := c.do(ctx, http.MethodPost, "/chats/"+chatID+"/messages", nil, form{"text": content}, &resp2)
		if err2 == nil {
			return schedule.Receipt{
				"messageId":   resp2.ID,
				"chatId":      chatID,
				"phoneNumber": "+" + digits,
				"sentAt":      c.sentAt(resp2),
				"endpoint":    "POST /chats/" + chatID + "/messages",
			}, nil
		}
		log.Warn("existing chat send failed", logx.Err(err2))
	}
	return nil, errors.Wrapf(err, "send message to +%s", digits)
}

// SendToContact resolves contact among the account's individual chats and
// posts into the matching one.
func (c *Client) SendToContact(ctx context.Context, contact, content string) (schedule.Receipt, error) {
	chats, err := c.ListChats(ctx, "individual", 100)
	if err != nil {
		return nil, errors.Wrapf(err, "send message to contact %q", contact)
	}
	if len(chats) == 0 {
		return nil, errors.Newf("send message to contact %q: no contacts found in WhatsApp", contact)
	}
	chat, ok := matchContact(chats, contact)
	if !ok {
		return nil, errors.Newf("contact %q not found. Available contacts: %s...", contact, availableNames(chats, 5))
	}
	c.log.Debug("contact resolved", logx.String("contact", contact), logx.String("chat", chat.ID), logx.String("name", chat.Name))

	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "/chats/"+chat.ID+"/messages", nil, form{"text": content}, &resp); err != nil {
		return nil, errors.Wrapf(err, "send message to contact %q", contact)
	}
	id := resp.ID
	if id == "" {
		id = resp.MessageID
	}
	name := chat.Name
	if name == "" {
		name = chat.PhoneNumber
	}
	return schedule.Receipt{
		"messageId":   id,
		"contactName": name,
		"chatId":      chat.ID,
		"sentAt":      c.sentAt(resp),
	}, nil
}
