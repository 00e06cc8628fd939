package telegram

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// UpdateKind identifies which payload an Update carries.
type UpdateKind string

const (
	KindMessage         UpdateKind = "message"
	KindCallbackQuery   UpdateKind = "callback_query"
	KindChatMember      UpdateKind = "chat_member"
	KindMyChatMember    UpdateKind = "my_chat_member"
	KindChatJoinRequest UpdateKind = "chat_join_request"
	KindUnknown         UpdateKind = "unknown"
)

// Update is one inbound event from getUpdates. UpdateID is strictly
// increasing across a bot's lifetime; at most one payload field is set.
type Update struct {
	UpdateID        int64              `json:"update_id"`
	Message         *Message           `json:"message,omitempty"`
	CallbackQuery   *CallbackQuery     `json:"callback_query,omitempty"`
	ChatMember      *ChatMemberUpdated `json:"chat_member,omitempty"`
	MyChatMember    *ChatMemberUpdated `json:"my_chat_member,omitempty"`
	ChatJoinRequest *ChatJoinRequest   `json:"chat_join_request,omitempty"`
}

// Kind reports the payload category of the update.
func (u *Update) Kind() UpdateKind {
	switch {
	case u.Message != nil:
		return KindMessage
	case u.CallbackQuery != nil:
		return KindCallbackQuery
	case u.ChatMember != nil:
		return KindChatMember
	case u.MyChatMember != nil:
		return KindMyChatMember
	case u.ChatJoinRequest != nil:
		return KindChatJoinRequest
	default:
		return KindUnknown
	}
}

// User is a Telegram user or bot account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Name returns the full display name.
func (u *User) Name() string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// Link returns the t.me link for the user, or "" without a username.
func (u *User) Link() string {
	if u.Username == "" {
		return ""
	}
	return "t.me/" + u.Username
}

// BotUser is the getMe result: the bot's own account plus capabilities.
type BotUser struct {
	User
	CanJoinGroups           bool `json:"can_join_groups"`
	CanReadAllGroupMessages bool `json:"can_read_all_group_messages"`
	SupportsInlineQueries   bool `json:"supports_inline_queries"`
}

// Chat types as reported in Chat.Type.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Chat is a conversation the bot participates in.
type Chat struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Username    string `json:"username,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsPrivate reports whether the chat is a one-on-one conversation.
func (c *Chat) IsPrivate() bool {
	return c.Type == ChatPrivate
}

// Name returns the chat title, or the peer's name for private chats.
func (c *Chat) Name() string {
	if c.Title != "" {
		return c.Title
	}
	if c.LastName != "" {
		return c.FirstName + " " + c.LastName
	}
	return c.FirstName
}

// MessageEntity marks a span of special text inside a message.
// Offset and Length are in UTF-16 code units.
type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url,omitempty"`
	User   *User  `json:"user,omitempty"`
}

// Message is one chat message.
type Message struct {
	ID              int                   `json:"message_id"`
	From            *User                 `json:"from,omitempty"`
	SenderChat      *Chat                 `json:"sender_chat,omitempty"`
	Date            int64                 `json:"date"`
	Chat            Chat                  `json:"chat"`
	ForwardFrom     *User                 `json:"forward_from,omitempty"`
	ForwardFromChat *Chat                 `json:"forward_from_chat,omitempty"`
	ForwardDate     int64                 `json:"forward_date,omitempty"`
	ReplyToMessage  *Message              `json:"reply_to_message,omitempty"`
	EditDate        int64                 `json:"edit_date,omitempty"`
	Text            string                `json:"text,omitempty"`
	Caption         string                `json:"caption,omitempty"`
	Entities        []MessageEntity       `json:"entities,omitempty"`
	CaptionEntities []MessageEntity       `json:"caption_entities,omitempty"`
	Photo           []PhotoSize           `json:"photo,omitempty"`
	NewChatMembers  []User                `json:"new_chat_members,omitempty"`
	LeftChatMember  *User                 `json:"left_chat_member,omitempty"`
	Dice            *Dice                 `json:"dice,omitempty"`
	ReplyMarkup     *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Content returns the message text, falling back to the media caption.
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// entitySource returns the text and entity list the message's entity
// helpers operate on: the text with its entities, or the caption with
// its caption entities for media messages.
func (m *Message) entitySource() (string, []MessageEntity) {
	if m.Text != "" {
		return m.Text, m.Entities
	}
	return m.Caption, m.CaptionEntities
}

// entityTexts returns the span of every entity of the given type, in
// order of appearance. Entity offsets count UTF-16 code units, not
// bytes; spans that fall outside the text are ignored.
func (m *Message) entityTexts(entityType string) []string {
	text, entities := m.entitySource()
	if len(entities) == 0 {
		return nil
	}

	encoded := utf16.Encode([]rune(text))
	var spans []string
	for _, ent := range entities {
		if ent.Type != entityType {
			continue
		}
		if ent.Offset < 0 || ent.Offset+ent.Length > len(encoded) {
			continue
		}
		spans = append(spans, string(utf16.Decode(encoded[ent.Offset:ent.Offset+ent.Length])))
	}
	return spans
}

// Commands returns every bot_command entity in the message, e.g.
// "/start" or "/ban@somebot", in order of appearance.
func (m *Message) Commands() []string {
	return m.entityTexts("bot_command")
}

// Mentions returns every @username mention in the message.
func (m *Message) Mentions() []string {
	return m.entityTexts("mention")
}

// Hashtags returns every #hashtag in the message.
func (m *Message) Hashtags() []string {
	return m.entityTexts("hashtag")
}

// Cashtags returns every $cashtag in the message.
func (m *Message) Cashtags() []string {
	return m.entityTexts("cashtag")
}

// Links returns every plain URL in the message.
func (m *Message) Links() []string {
	return m.entityTexts("url")
}

// htmlTags maps the formatting entity types HTMLText renders to their
// opening and closing tags. text_link and text_mention need per-entity
// attributes and are handled inline.
var htmlTags = map[string][2]string{
	"bold":          {"<b>", "</b>"},
	"italic":        {"<i>", "</i>"},
	"underline":     {"<u>", "</u>"},
	"strikethrough": {"<s>", "</s>"},
	"spoiler":       {"<tg-spoiler>", "</tg-spoiler>"},
	"code":          {"<code>", "</code>"},
}

// HTMLText renders the message text with its formatting entities as
// HTML parse-mode markup, so a bot can quote a formatted message back
// without losing bold, italics, links or mentions. Text without
// formatting entities comes back unchanged.
func (m *Message) HTMLText() string {
	text, entities := m.entitySource()
	encoded := utf16.Encode([]rune(text))

	var spans []MessageEntity
	for _, ent := range entities {
		if ent.Offset < 0 || ent.Offset+ent.Length > len(encoded) {
			continue
		}
		switch ent.Type {
		case "bold", "italic", "underline", "strikethrough", "spoiler", "code", "text_link", "text_mention":
			spans = append(spans, ent)
		}
	}
	// Wrapping back to front keeps earlier offsets valid as tags grow
	// the string.
	sort.Slice(spans, func(i, j int) bool { return spans[i].Offset > spans[j].Offset })

	result := text
	for _, ent := range spans {
		prefix := string(utf16.Decode(encoded[:ent.Offset]))
		body := string(utf16.Decode(encoded[ent.Offset : ent.Offset+ent.Length]))

		var open, close string
		switch ent.Type {
		case "text_link":
			open, close = `<a href="`+ent.URL+`">`, "</a>"
		case "text_mention":
			if ent.User == nil {
				continue
			}
			open = `<a href="tg://user?id=` + strconv.FormatInt(ent.User.ID, 10) + `">`
			close = "</a>"
		default:
			tags := htmlTags[ent.Type]
			open, close = tags[0], tags[1]
		}
		result = prefix + open + body + close + result[len(prefix)+len(body):]
	}
	return result
}

// htmlEscaper covers the characters the HTML parse mode treats as
// markup, plus the curly quotes Telegram clients autocorrect to.
var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"“", "&#8220;",
	"”", "&#8221;",
)

// HTMLEscape escapes text for safe inclusion in HTML parse-mode
// messages.
func HTMLEscape(s string) string {
	return htmlEscaper.Replace(s)
}

// HasCommand reports whether the message carries the given bot_command.
func (m *Message) HasCommand(cmd string) bool {
	for _, c := range m.Commands() {
		if c == cmd {
			return true
		}
	}
	return false
}

// IsForward reports whether the message was forwarded from elsewhere.
func (m *Message) IsForward() bool {
	return m.ForwardFrom != nil || m.ForwardFromChat != nil || m.ForwardDate != 0
}

// Link returns the t.me link for supergroup and channel messages, or
// "" for chats without public message links.
func (m *Message) Link() string {
	id := strconv.FormatInt(m.Chat.ID, 10)
	if !strings.HasPrefix(id, "-100") {
		return ""
	}
	return "t.me/c/" + strings.TrimPrefix(id, "-100") + "/" + strconv.Itoa(m.ID)
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	ID              string   `json:"id"`
	From            User     `json:"from"`
	Message         *Message `json:"message,omitempty"`
	InlineMessageID string   `json:"inline_message_id,omitempty"`
	ChatInstance    string   `json:"chat_instance"`
	Data            string   `json:"data,omitempty"`
}

// Chat member statuses as reported in ChatMember.Status.
const (
	MemberCreator       = "creator"
	MemberAdministrator = "administrator"
	MemberMember        = "member"
	MemberRestricted    = "restricted"
	MemberLeft          = "left"
	MemberKicked        = "kicked"
)

// ChatMember describes a user's standing inside one chat.
type ChatMember struct {
	User        User   `json:"user"`
	Status      string `json:"status"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	CustomTitle string `json:"custom_title,omitempty"`
	UntilDate   int64  `json:"until_date,omitempty"`
	IsMember    bool   `json:"is_member,omitempty"`

	CanBeEdited         bool `json:"can_be_edited,omitempty"`
	CanDeleteMessages   bool `json:"can_delete_messages,omitempty"`
	CanPromoteMembers   bool `json:"can_promote_members,omitempty"`
	CanChangeInfo       bool `json:"can_change_info,omitempty"`
	CanInviteUsers      bool `json:"can_invite_users,omitempty"`
	CanPinMessages      bool `json:"can_pin_messages,omitempty"`
	CanSendMessages     bool `json:"can_send_messages,omitempty"`
	CanSendPolls        bool `json:"can_send_polls,omitempty"`
	CanSendOtherMessage bool `json:"can_send_other_messages,omitempty"`
}

// IsAdmin reports whether the member can act with admin rights.
func (m *ChatMember) IsAdmin() bool {
	return m.Status == MemberCreator || m.Status == MemberAdministrator
}

// ChatMemberUpdated is a membership transition inside a chat.
type ChatMemberUpdated struct {
	Chat          Chat            `json:"chat"`
	From          User            `json:"from"`
	Date          int64           `json:"date"`
	OldChatMember ChatMember      `json:"old_chat_member"`
	NewChatMember ChatMember      `json:"new_chat_member"`
	InviteLink    *ChatInviteLink `json:"invite_link,omitempty"`
}

// ChatJoinRequest is a pending request to join a chat.
type ChatJoinRequest struct {
	Chat       Chat            `json:"chat"`
	From       User            `json:"from"`
	UserChatID int64           `json:"user_chat_id"`
	Date       int64           `json:"date"`
	Bio        string          `json:"bio,omitempty"`
	InviteLink *ChatInviteLink `json:"invite_link,omitempty"`
}

// ChatInviteLink describes an invite link of a chat.
type ChatInviteLink struct {
	InviteLink              string `json:"invite_link"`
	Creator                 User   `json:"creator"`
	CreatesJoinRequest      bool   `json:"creates_join_request"`
	IsPrimary               bool   `json:"is_primary"`
	IsRevoked               bool   `json:"is_revoked"`
	Name                    string `json:"name,omitempty"`
	ExpireDate              int64  `json:"expire_date,omitempty"`
	MemberLimit             int    `json:"member_limit,omitempty"`
	PendingJoinRequestCount int    `json:"pending_join_request_count,omitempty"`
}

// ChatPermissions lists the actions a restricted member may perform.
type ChatPermissions struct {
	CanSendMessages       bool `json:"can_send_messages"`
	CanSendAudios         bool `json:"can_send_audios"`
	CanSendDocuments      bool `json:"can_send_documents"`
	CanSendPhotos         bool `json:"can_send_photos"`
	CanSendVideos         bool `json:"can_send_videos"`
	CanSendVideoNotes     bool `json:"can_send_video_notes"`
	CanSendVoiceNotes     bool `json:"can_send_voice_notes"`
	CanSendPolls          bool `json:"can_send_polls"`
	CanSendOtherMessages  bool `json:"can_send_other_messages"`
	CanAddWebPagePreviews bool `json:"can_add_web_page_previews"`
}

// AllPermissions returns permissions with every action allowed.
func AllPermissions() ChatPermissions {
	return ChatPermissions{
		CanSendMessages:       true,
		CanSendAudios:         true,
		CanSendDocuments:      true,
		CanSendPhotos:         true,
		CanSendVideos:         true,
		CanSendVideoNotes:     true,
		CanSendVoiceNotes:     true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
	}
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button of an inline keyboard. Exactly one
// of URL or CallbackData should be set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// ReplyParameters describes the message being replied to.
type ReplyParameters struct {
	MessageID                int    `json:"message_id"`
	ChatID                   int64  `json:"chat_id,omitempty"`
	AllowSendingWithoutReply bool   `json:"allow_sending_without_reply,omitempty"`
	Quote                    string `json:"quote,omitempty"`
}

// File is a downloadable file reference from getFile.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// PhotoSize is one resolution of a photo.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Dice is an animated dice roll message.
type Dice struct {
	Emoji string `json:"emoji"`
	Value int    `json:"value"`
}
