package unipile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Chat is the subset of a Unipile chat used for contact resolution.
type Chat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type rawChat map[string]any

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func firstObject(v any) map[string]any {
	switch x := v.(type) {
	case []any:
		if len(x) > 0 {
			m, _ := x[0].(map[string]any)
			return m
		}
	case map[string]any:
		return x
	}
	return nil
}

// name picks the first populated display field Unipile may use.
func (r rawChat) name() string {
	for _, k := range []string{"name", "title", "display_name", "attendee_name"} {
		if s := str(r, k); s != "" {
			return s
		}
	}
	for _, key := range []string{"attendees", "attendee"} {
		if a := firstObject(r[key]); a != nil {
			if s := str(a, "display_name"); s != "" {
				return s
			}
			if s := str(a, "name"); s != "" {
				return s
			}
		}
	}
	if s := str(r, "provider_id"); s != "" {
		return s
	}
	return "Unknown Contact"
}

func (r rawChat) phone() string {
	if s := str(r, "phone_number"); s != "" {
		return s
	}
	if a := firstObject(r["attendees"]); a != nil {
		return str(a, "identifier")
	}
	return ""
}

func (r rawChat) chatType() string {
	if s := str(r, "type"); s != "" {
		return s
	}
	return str(r, "chat_type")
}

// ListChats returns chats of the configured account. kind is "individual",
// "group" or "" for all.
func (c *Client) ListChats(ctx context.Context, kind string, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	if kind == "" {
		kind = "all"
	}
	q := url.Values{}
	q.Set("account_id", c.cfg.AccountID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("chat_type", kind)

	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/chats", q, nil, &body); err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	var raws []rawChat
	var page struct {
		Items []rawChat `json:"items"`
	}
	if err := json.Unmarshal(body, &page); err == nil && page.Items != nil {
		raws = page.Items
	} else if err := json.Unmarshal(body, &raws); err != nil {
		return nil, errors.Wrap(err, "decode chats")
	}

	out := make([]Chat, 0, len(raws))
	for _, r := range raws {
		out = append(out, Chat{ID: str(r, "id"), Name: r.name(), Type: r.chatType(), PhoneNumber: r.phone()})
	}
	return out, nil
}

// matchContact finds the chat addressed by term: a case-insensitive partial
// name match in either direction, or the term's digits inside the chat phone.
// An exact name match wins over earlier partial matches.
func matchContact(chats []Chat, term string) (Chat, bool) {
	term = strings.ToLower(strings.TrimSpace(term))
	digits := onlyDigits(term)

	var matches []Chat
	for _, ch := range chats {
		name := strings.ToLower(ch.Name)
		phone := strings.ToLower(ch.PhoneNumber)
		switch {
		case name != "" && strings.Contains(name, term),
			name != "" && strings.Contains(term, name),
			digits != "" && strings.Contains(phone, digits):
			matches = append(matches, ch)
		}
	}
	if len(matches) == 0 {
		return Chat{}, false
	}
	for _, m := range matches {
		if strings.ToLower(m.Name) == term {
			return m, true
		}
	}
	return matches[0], true
}

func availableNames(chats []Chat, n int) string {
	names := make([]string, 0, n)
	for _, ch := range chats {
		if len(names) == n {
			break
		}
		switch {
		case ch.Name != "":
			names = append(names, ch.Name)
		case ch.PhoneNumber != "":
			names = append(names, ch.PhoneNumber)
		default:
			names = append(names, "Unknown")
		}
	}
	return strings.Join(names, ", ")
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
