package format_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/auto-dns/harbinger/internal/classify"
	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/auto-dns/harbinger/internal/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func intent(severity domain.Severity, logs []string) domain.NotificationIntent {
	return domain.NotificationIntent{
		Severity: severity,
		Title:    "Container Out Of Memory",
		Fields: []domain.Field{
			{Label: "Container", Value: "shop/web"},
			{Label: "Image", Value: "nginx:1.27"},
			{Label: "Compose Project", Value: "shop"},
		},
		LogsExcerpt: logs,
		Container:   domain.ContainerRef{ID: "abc", ComposeProject: "shop", ComposeService: "web"},
		Action:      domain.ActionOOM,
		Time:        at,
	}
}

func TestFormatter_Format(t *testing.T) {
	t.Parallel()

	f := format.New(5, "node-1")
	got := f.Format(intent(domain.SeverityFatal, []string{"a", "b"}))

	require.Len(t, got.Message.Attachments, 1)
	att := got.Message.Attachments[0]
	assert.Equal(t, format.ColorFatal, att.Color)
	assert.Equal(t, "Container Out Of Memory", att.Title)
	assert.Equal(t, "Docker Compose Service Event", att.Pretext)
	assert.Equal(t, "Docker Compose Service Event: shop/web Container Out Of Memory", att.Fallback)
	assert.Equal(t, "harbinger - node-1", att.Footer)
	assert.Equal(t, json.Number("1740830400"), att.Ts)
	assert.Equal(t, "*Recent logs:*\n```\na\nb\n```", att.Text)
	assert.Equal(t, []string{"text"}, att.MarkdownIn)

	require.Len(t, att.Fields, 3)
	assert.Equal(t, "Container", att.Fields[0].Title)
	assert.Equal(t, "shop/web", att.Fields[0].Value)
	assert.True(t, att.Fields[0].Short)
	assert.Equal(t, "Compose Project", att.Fields[2].Title)
	assert.False(t, got.IsEmpty())
}

func TestFormatter_Colors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give domain.Severity
		want string
	}{
		{give: domain.SeverityInfo, want: format.ColorInfo},
		{give: domain.SeverityWarning, want: format.ColorWarning},
		{give: domain.SeverityError, want: format.ColorError},
		{give: domain.SeverityFatal, want: format.ColorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.give.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, format.Color(tt.give))
		})
	}
}

func TestFormatter_ExcerptCapKeepsLastLines(t *testing.T) {
	t.Parallel()

	f := format.New(2, "h")
	got := f.Format(intent(domain.SeverityError, []string{"1", "2", "3 ```x```"}))

	assert.Equal(t, "*Recent logs:*\n```\n2\n3 '''x'''\n```", got.Message.Attachments[0].Text)
}

func TestFormatter_NoExcerpt(t *testing.T) {
	t.Parallel()

	f := format.New(5, "h")
	got := f.Format(intent(domain.SeverityInfo, nil))

	att := got.Message.Attachments[0]
	assert.Empty(t, att.Text)
	assert.Empty(t, att.MarkdownIn)
}

func TestFormatter_PlainContainerHeader(t *testing.T) {
	t.Parallel()

	in := intent(domain.SeverityInfo, nil)
	in.Container = domain.ContainerRef{ID: "abc", Name: "web"}

	got := format.New(5, "h").Format(in)

	assert.Equal(t, "Docker Container Event", got.Message.Attachments[0].Pretext)
}

func TestFormatter_Deterministic(t *testing.T) {
	t.Parallel()

	c := classify.New("node-1", "production")
	f := format.New(5, "node-1")
	ev := domain.RawEvent{
		Container: domain.ContainerRef{ID: "abc", Name: "web", Image: "nginx", ComposeProject: "shop", ComposeService: "web"},
		Action:    domain.ActionDie,
		ExitCode:  domain.IntPtr(1),
		Time:      at,
	}

	first, err := f.Format(c.Classify(ev, domain.ContainerState{})).JSON()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := f.Format(c.Classify(ev, domain.ContainerState{})).JSON()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
