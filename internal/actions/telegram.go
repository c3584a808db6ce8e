package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"text/template"

	"github.com/eigenein/myiot/internal/router"
	"github.com/eigenein/myiot/pkg/log"
)

// TelegramURL is the Bot API endpoint pattern.
const TelegramURL = "https://api.telegram.org/bot%s/%s"

// DefaultTelegramTemplate renders the message text.
const DefaultTelegramTemplate = "{{.DisplayTitle}}: {{.Value}}"

// TelegramOptions configures the Telegram action.
type TelegramOptions struct {
	Token  string
	ChatID string
	// Template is a text/template executed with the event.
	Template string
	// Animation sends the value as an animation URL with the text as caption.
	Animation           bool
	DisableNotification bool
	// BaseURL overrides TelegramURL; it must contain two %s verbs.
	BaseURL string
	Logger  log.Logger
}

// Telegram sends a message per delivery using the delivery's HTTP client.
func Telegram(opts TelegramOptions) (router.Handler, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, fmt.Errorf("telegram: token and chat id are required")
	}
	if opts.Template == "" {
		opts.Template = DefaultTelegramTemplate
	}
	if opts.BaseURL == "" {
		opts.BaseURL = TelegramURL
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	tmpl, err := template.New("telegram").Parse(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("telegram template: %w", err)
	}

	return func(ctx context.Context, d router.Delivery) error {
		var text bytes.Buffer
		if err := tmpl.Execute(&text, d.Event); err != nil {
			return fmt.Errorf("render telegram text: %w", err)
		}
		form := url.Values{
			"chat_id":              {opts.ChatID},
			"disable_notification": {strconv.FormatBool(opts.DisableNotification)},
		}
		method := "sendMessage"
		if opts.Animation {
			method = "sendAnimation"
			form.Set("animation", fmt.Sprint(d.Event.Value))
			form.Set("caption", text.String())
		} else {
			form.Set("text", text.String())
		}

		client := d.Client
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf(opts.BaseURL, opts.Token, method), bytes.NewBufferString(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		opts.Logger.Debug("telegram request", log.Str("method", method))
		resp, err := client.Do(req)
		if err != nil {
			// the request URL carries the bot token
			var ue *url.Error
			if errors.As(err, &ue) {
				err = ue.Err
			}
			return fmt.Errorf("telegram %s: %w", method, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("telegram %s: %s: %s", method, resp.Status, bytes.TrimSpace(body))
		}
		return nil
	}, nil
}
