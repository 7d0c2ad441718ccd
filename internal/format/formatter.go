// Package format renders notification intents into Slack webhook messages.
package format

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/auto-dns/harbinger/internal/util"
	"github.com/slack-go/slack"
)

const (
	ColorInfo    = "#36a64f"
	ColorWarning = "#f2a900"
	ColorError   = "#dc3545"
	ColorFatal   = "#a30200"

	composeHeader   = "Docker Compose Service Event"
	containerHeader = "Docker Container Event"
	footerPrefix    = "harbinger"

	shortFieldLimit = 40
	codeFence       = "```"
)

// Payload is a rendered message ready for delivery.
type Payload struct {
	Message slack.WebhookMessage
}

// JSON encodes the payload. The encoding is stable for equal payloads.
func (p Payload) JSON() ([]byte, error) {
	return json.Marshal(p.Message)
}

func (p Payload) IsEmpty() bool {
	return p.Message.Text == "" && len(p.Message.Attachments) == 0
}

type Formatter struct {
	MaxLogLines int
	Host        string
}

func New(maxLogLines int, host string) *Formatter {
	return &Formatter{MaxLogLines: maxLogLines, Host: host}
}

func (f *Formatter) Format(intent domain.NotificationIntent) Payload {
	header := containerHeader
	if intent.Container.IsCompose() {
		header = composeHeader
	}

	att := slack.Attachment{
		Color:    Color(intent.Severity),
		Fallback: header + ": " + intent.Container.DisplayName() + " " + intent.Title,
		Pretext:  header,
		Title:    intent.Title,
		Fields: util.Map(intent.Fields, func(fl domain.Field) slack.AttachmentField {
			return slack.AttachmentField{
				Title: fl.Label,
				Value: fl.Value,
				Short: len(fl.Value) <= shortFieldLimit,
			}
		}),
		Footer: footerPrefix + " - " + f.Host,
	}
	if !intent.Time.IsZero() {
		att.Ts = json.Number(strconv.FormatInt(intent.Time.Unix(), 10))
	}
	if excerpt := f.excerpt(intent.LogsExcerpt); excerpt != "" {
		att.Text = "*Recent logs:*\n" + codeFence + "\n" + excerpt + "\n" + codeFence
		att.MarkdownIn = []string{"text"}
	}

	return Payload{Message: slack.WebhookMessage{Attachments: []slack.Attachment{att}}}
}

// excerpt keeps the last MaxLogLines lines and neutralizes code fences inside them.
func (f *Formatter) excerpt(lines []string) string {
	if f.MaxLogLines <= 0 || len(lines) == 0 {
		return ""
	}
	return strings.Join(util.Map(util.Last(lines, f.MaxLogLines), func(l string) string {
		return strings.ReplaceAll(l, codeFence, "'''")
	}), "\n")
}

func Color(s domain.Severity) string {
	switch s {
	case domain.SeverityWarning:
		return ColorWarning
	case domain.SeverityError:
		return ColorError
	case domain.SeverityFatal:
		return ColorFatal
	default:
		return ColorInfo
	}
}
