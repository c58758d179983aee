package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"postgate/internal/logger"
)

// Bot API limit for sendPhoto; larger files go out as documents.
const telegramPhotoLimit = 10 * 1024 * 1024

var ErrInvalidChat = errors.New("identifier must be @channel or a numeric chat id")

// TelegramSession is what a Telegram login yields: the bot token and the chat
// it posts to. It is persisted sealed, never in the clear.
type TelegramSession struct {
	Token       string `json:"token"`
	BotID       int64  `json:"bot_id"`
	BotUsername string `json:"bot_username"`
	Chat        string `json:"chat"`
}

// TelegramClient posts to a Telegram chat. The account identifier is the
// chat, the secret is the bot token.
type TelegramClient struct {
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

type TelegramOption func(*TelegramClient)

// WithTelegramAPI points the client at a different Bot API server.
func WithTelegramAPI(url string) TelegramOption {
	return func(c *TelegramClient) {
		c.apiURL = url
	}
}

func WithTelegramHTTPClient(client *http.Client) TelegramOption {
	return func(c *TelegramClient) {
		c.httpClient = client
	}
}

func NewTelegramClient(log *slog.Logger, opts ...TelegramOption) *TelegramClient {
	if log == nil {
		log = slog.Default()
	}
	c := &TelegramClient{logger: log.With(logger.Component("telegram"))}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TelegramClient) newBot(token string) (*telego.Bot, error) {
	opts := []telego.BotOption{telego.WithDiscardLogger()}
	if c.apiURL != "" {
		opts = append(opts, telego.WithAPIServer(c.apiURL))
	}
	if c.httpClient != nil {
		opts = append(opts, telego.WithHTTPClient(c.httpClient))
	}

	b, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telego bot: %w", err)
	}
	return b, nil
}

func (c *TelegramClient) Login(ctx context.Context, identifier, secret string) (Session, error) {
	chat := strings.TrimSpace(identifier)
	if _, err := parseChatID(chat); err != nil {
		return nil, err
	}

	b, err := c.newBot(secret)
	if err != nil {
		return nil, err
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("getMe: %w", err)
	}

	return &TelegramSession{
		Token:       secret,
		BotID:       me.ID,
		BotUsername: me.Username,
		Chat:        chat,
	}, nil
}

func (c *TelegramClient) Probe(ctx context.Context, session Session) error {
	s, err := asTelegramSession(session)
	if err != nil {
		return err
	}

	b, err := c.newBot(s.Token)
	if err != nil {
		return err
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	if me.ID != s.BotID {
		return fmt.Errorf("token now belongs to bot %d, session was for %d", me.ID, s.BotID)
	}
	return nil
}

func (c *TelegramClient) Save(session Session) ([]byte, error) {
	s, err := asTelegramSession(session)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

func (c *TelegramClient) Load(blob []byte) (Session, error) {
	var s TelegramSession
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if s.Token == "" || s.Chat == "" {
		return nil, fmt.Errorf("%w: missing token or chat", ErrInvalidSession)
	}
	return &s, nil
}

func (c *TelegramClient) UploadImage(ctx context.Context, session Session, path, caption string) (*Post, error) {
	s, err := asTelegramSession(session)
	if err != nil {
		return nil, err
	}

	chatID, err := parseChatID(s.Chat)
	if err != nil {
		return nil, err
	}

	b, err := c.newBot(s.Token)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer func(file *os.File) {
		if closeErr := file.Close(); closeErr != nil {
			c.logger.Warn("failed to close upload file", logger.File(path), logger.Error(closeErr))
		}
	}(file)

	var msg *telego.Message
	if stat.Size() <= telegramPhotoLimit {
		msg, err = b.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID:  chatID,
			Photo:   telego.InputFile{File: file},
			Caption: caption,
		})
	} else {
		msg, err = b.SendDocument(ctx, &telego.SendDocumentParams{
			ChatID:   chatID,
			Document: telego.InputFile{File: file},
			Caption:  caption,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send file to chat %s: %w", s.Chat, err)
	}

	return &Post{ID: strconv.Itoa(msg.MessageID)}, nil
}

func asTelegramSession(session Session) (*TelegramSession, error) {
	s, ok := session.(*TelegramSession)
	if !ok || s == nil {
		return nil, ErrForeignSession
	}
	return s, nil
}

func parseChatID(chat string) (telego.ChatID, error) {
	if strings.HasPrefix(chat, "@") && len(chat) > 1 {
		return telego.ChatID{Username: chat}, nil
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil || id == 0 {
		return telego.ChatID{}, ErrInvalidChat
	}
	return telego.ChatID{ID: id}, nil
}
