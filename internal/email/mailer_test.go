package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptcoach/pt-manager/internal/logging"
)

func TestMailer_SendWelcome(t *testing.T) {
	sender := NewNoopSender(logging.Nop())
	m := NewMailer(sender, "coach@example.com", "https://app.example.com/")

	require.NoError(t, m.SendWelcome(context.Background(), "mario@example.com", "Mario", "Tmp-1234"))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"mario@example.com"}, sent[0].To)
	assert.Equal(t, "coach@example.com", sent[0].ReplyTo)
	assert.Contains(t, sent[0].HTML, "<h1>Welcome, Mario</h1>")
	assert.Contains(t, sent[0].HTML, "<code>Tmp-1234</code>")
	assert.Contains(t, sent[0].HTML, `href="https://app.example.com/client/login"`)
}

func TestMailer_SendPasswordReset(t *testing.T) {
	sender := NewNoopSender(logging.Nop())
	m := NewMailer(sender, "", "https://app.example.com")

	require.NoError(t, m.SendPasswordReset(context.Background(), "a@example.com", "Anna", "tok en", "1h0m0s"))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, `href="https://app.example.com/reset-password?token=tok+en"`)
	assert.Contains(t, sent[0].HTML, "1h0m0s")
}

func TestMailer_EscapesRawHTML(t *testing.T) {
	sender := NewNoopSender(logging.Nop())
	m := NewMailer(sender, "", "https://app.example.com")

	require.NoError(t, m.SendWelcome(context.Background(), "x@example.com", "<script>x</script>", "p"))

	assert.NotContains(t, sender.Sent()[0].HTML, "<script>")
}
