package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/The-Earth/catbot/internal/timeutil"
	"github.com/The-Earth/catbot/pkg/constants"
)

// SendOptions carries the optional parameters of sendMessage and
// editMessageText.
type SendOptions struct {
	ParseMode             string
	DisableWebPagePreview bool
	DisableNotification   bool
	ReplyParameters       *ReplyParameters
	ReplyMarkup           *InlineKeyboardMarkup
}

func (o *SendOptions) apply(params url.Values) error {
	if o == nil {
		return nil
	}
	if o.ParseMode != "" {
		params.Set("parse_mode", o.ParseMode)
	}
	if o.DisableWebPagePreview {
		params.Set("disable_web_page_preview", "true")
	}
	if o.DisableNotification {
		params.Set("disable_notification", "true")
	}
	if o.ReplyParameters != nil {
		data, err := json.Marshal(o.ReplyParameters)
		if err != nil {
			return fmt.Errorf("telegram: marshal reply parameters: %w", err)
		}
		params.Set("reply_parameters", string(data))
	}
	if o.ReplyMarkup != nil {
		data, err := json.Marshal(o.ReplyMarkup)
		if err != nil {
			return fmt.Errorf("telegram: marshal reply markup: %w", err)
		}
		params.Set("reply_markup", string(data))
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*BotUser, error) {
	result, err := c.Invoke(ctx, "getMe", url.Values{})
	if err != nil {
		return nil, err
	}
	var me BotUser
	if err := json.Unmarshal(result, &me); err != nil {
		return nil, fmt.Errorf("telegram: decode getMe: %w", err)
	}
	return &me, nil
}

// SendMessage sends a text message. Plain text longer than the split
// threshold is sent as numbered parts, paced so the burst stays under
// flood limits; the last part sent is returned. Formatted text
// (ParseMode set) is never split, since a split could break an entity
// in half.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	if opts == nil || opts.ParseMode == "" {
		if parts := splitText(text, constants.MessageSplitLength); len(parts) > 1 {
			var sent *Message
			for i, part := range parts {
				if i > 0 {
					if err := timeutil.Sleep(ctx, constants.MessageSplitDelay); err != nil {
						return sent, err
					}
				}
				numbered := fmt.Sprintf("%s\n\n(%d / %d)", part, i+1, len(parts))
				msg, err := c.sendOne(ctx, chatID, numbered, opts)
				if err != nil {
					return sent, err
				}
				sent = msg
			}
			return sent, nil
		}
	}
	return c.sendOne(ctx, chatID, text, opts)
}

func (c *Client) sendOne(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	if err := opts.apply(params); err != nil {
		return nil, err
	}

	result, err := c.Invoke(ctx, "sendMessage", params)
	if err != nil {
		return nil, err
	}
	return decodeMessage(result)
}

// splitText cuts text into rune-safe chunks of at most max runes.
func splitText(text string, max int) []string {
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		n := max
		if n > len(runes) {
			n = len(runes)
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}

// EditMessageText replaces the text of an existing message. Editing to
// identical content is not an error and returns (nil, nil).
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts *SendOptions) (*Message, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.Itoa(messageID))
	params.Set("text", text)
	if err := opts.apply(params); err != nil {
		return nil, err
	}

	result, err := c.Invoke(ctx, "editMessageText", params)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
			return nil, nil
		}
		return nil, err
	}
	return decodeMessage(result)
}

// ForwardMessage forwards a message between chats.
func (c *Client) ForwardMessage(ctx context.Context, fromChatID, toChatID int64, messageID int, disableNotification bool) (*Message, error) {
	params := url.Values{}
	params.Set("from_chat_id", strconv.FormatInt(fromChatID, 10))
	params.Set("chat_id", strconv.FormatInt(toChatID, 10))
	params.Set("message_id", strconv.Itoa(messageID))
	params.Set("disable_notification", strconv.FormatBool(disableNotification))

	result, err := c.Invoke(ctx, "forwardMessage", params)
	if err != nil {
		return nil, err
	}
	return decodeMessage(result)
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.Itoa(messageID))

	_, err := c.Invoke(ctx, "deleteMessage", params)
	return err
}

// CallbackAnswer carries the optional parameters of answerCallbackQuery.
type CallbackAnswer struct {
	Text      string
	ShowAlert bool
	CacheTime int
}

// AnswerCallbackQuery acknowledges a callback query. Call it for every
// received query even with an empty answer, or the client keeps the
// button in a loading state.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID string, answer *CallbackAnswer) error {
	params := url.Values{}
	params.Set("callback_query_id", queryID)
	if answer != nil {
		if answer.Text != "" {
			params.Set("text", answer.Text)
		}
		if answer.ShowAlert {
			params.Set("show_alert", "true")
		}
		if answer.CacheTime > 0 {
			params.Set("cache_time", strconv.Itoa(answer.CacheTime))
		}
	}

	_, err := c.Invoke(ctx, "answerCallbackQuery", params)
	return err
}

// GetChat fetches up-to-date information about a chat.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))

	result, err := c.Invoke(ctx, "getChat", params)
	if err != nil {
		return nil, err
	}
	var chat Chat
	if err := json.Unmarshal(result, &chat); err != nil {
		return nil, fmt.Errorf("telegram: decode getChat: %w", err)
	}
	return &chat, nil
}

// GetChatMember fetches a user's standing in a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))

	result, err := c.Invoke(ctx, "getChatMember", params)
	if err != nil {
		return nil, err
	}
	var member ChatMember
	if err := json.Unmarshal(result, &member); err != nil {
		return nil, fmt.Errorf("telegram: decode getChatMember: %w", err)
	}
	return &member, nil
}

// RestrictChatMember applies the given permission set to a user until
// the given unix time. A zero or near-past until means forever, per
// the remote API's rules.
func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64, until int64, permissions ChatPermissions) error {
	perms, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("telegram: marshal permissions: %w", err)
	}

	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))
	params.Set("until_date", strconv.FormatInt(until, 10))
	params.Set("permissions", string(perms))

	_, err = c.Invoke(ctx, "restrictChatMember", params)
	return err
}

// SilenceChatMember removes every send permission from a user.
func (c *Client) SilenceChatMember(ctx context.Context, chatID, userID int64, until int64) error {
	return c.RestrictChatMember(ctx, chatID, userID, until, ChatPermissions{})
}

// LiftRestrictions restores every send permission for a user. The
// until date lands just past the API's 30-second "forever" horizon so
// the restriction entry itself expires.
func (c *Client) LiftRestrictions(ctx context.Context, chatID, userID int64) error {
	return c.RestrictChatMember(ctx, chatID, userID, time.Now().Unix()+35, AllPermissions())
}

// LiftAndPreserveRestriction ends a restriction the bot imposed while
// keeping any earlier one that should still stand: when restrictedUntil
// is within the API's 30-second "forever" horizon the user is fully
// unrestricted, otherwise the previous silence is reapplied until that
// date (0 = forever). Kicked users are left alone, and failures the
// bot cannot act on (admin targets, missing rights, vanished users)
// are swallowed.
func (c *Client) LiftAndPreserveRestriction(ctx context.Context, chatID, userID int64, restrictedUntil int64) error {
	member, err := c.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if member.Status == MemberKicked {
		return nil
	}

	if restrictedUntil != 0 && restrictedUntil <= time.Now().Unix()+35 {
		err = c.LiftRestrictions(ctx, chatID, userID)
	} else {
		err = c.SilenceChatMember(ctx, chatID, userID, restrictedUntil)
	}
	if errors.Is(err, ErrRestrictAdmin) || errors.Is(err, ErrInsufficientRights) || errors.Is(err, ErrUserNotFound) {
		return nil
	}
	return err
}

// BanChatMember bans a user from a chat until the given unix time
// (0 = forever).
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64, until int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))
	params.Set("until_date", strconv.FormatInt(until, 10))

	_, err := c.Invoke(ctx, "banChatMember", params)
	return err
}

// KickChatMember removes a user without a lasting ban: the remote API
// expresses this as unbanChatMember on a current member.
func (c *Client) KickChatMember(ctx context.Context, chatID, userID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))

	_, err := c.Invoke(ctx, "unbanChatMember", params)
	return err
}

// UnbanChatMember lifts a ban if one exists.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))
	params.Set("only_if_banned", "true")

	_, err := c.Invoke(ctx, "unbanChatMember", params)
	return err
}

// ApproveChatJoinRequest accepts a pending join request.
func (c *Client) ApproveChatJoinRequest(ctx context.Context, chatID, userID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))

	_, err := c.Invoke(ctx, "approveChatJoinRequest", params)
	return err
}

// DeclineChatJoinRequest rejects a pending join request.
func (c *Client) DeclineChatJoinRequest(ctx context.Context, chatID, userID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))

	_, err := c.Invoke(ctx, "declineChatJoinRequest", params)
	return err
}

// GetFile resolves a file id into a downloadable file reference.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	params := url.Values{}
	params.Set("file_id", fileID)

	result, err := c.Invoke(ctx, "getFile", params)
	if err != nil {
		return nil, err
	}
	var file File
	if err := json.Unmarshal(result, &file); err != nil {
		return nil, fmt.Errorf("telegram: decode getFile: %w", err)
	}
	return &file, nil
}

func decodeMessage(raw json.RawMessage) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("telegram: decode message: %w", err)
	}
	return &msg, nil
}
