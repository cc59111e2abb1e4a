// AngelaMos | 2026
// mail_test.go

package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/config"
)

func TestNewFallsBackToLog(t *testing.T) {
	m := New(config.MailConfig{}, nil)
	_, ok := m.(*LogMailer)
	assert.True(t, ok)

	m = New(config.MailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, FromAddress: "no-reply@example.com"}, nil)
	_, ok = m.(*SMTPMailer)
	assert.True(t, ok)
}

func TestCompletionMessage(t *testing.T) {
	msg, err := CompletionMessage("dara@example.com", CompletionData{
		Name:         "Dara",
		ArticleTitle: "Lesson <1>",
		Accuracy:     85,
		NextURL:      "https://sorser.example/articles/2",
	})
	require.NoError(t, err)

	assert.Equal(t, TemplateArticleCompleted, msg.Template)
	assert.Contains(t, msg.HTML, "85% accuracy")
	assert.Contains(t, msg.HTML, "Lesson &lt;1&gt;")
	assert.Contains(t, msg.HTML, "articles/2")

	lm := NewLogMailer(nil)
	require.NoError(t, lm.Send(context.Background(), msg))
	require.Len(t, lm.Sent(), 1)
	assert.Equal(t, "dara@example.com", lm.Sent()[0].To)
}
