// AngelaMos | 2026
// routes.go

package listeners

import (
	"log/slog"

	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/events"
	"github.com/sorser/backend/internal/mail"
)

type Route struct {
	Event    string
	Listener string
	Mode     events.Mode
}

// Routes is the event to listener table, in dispatch order.
var Routes = []Route{
	{events.NameArticleCompleted, "update_user_progress", events.Sync},
	{events.NameArticleCompleted, "unlock_next_article", events.Sync},
	{events.NameArticleCompleted, "send_completion_email", events.Queued},
	{events.NameHomophoneCheckSaved, "update_user_progress", events.Sync},
	{events.NameQuizAttemptFinished, "update_user_progress", events.Sync},
	{events.NameUserProgressUpdated, "recalculate_analytics", events.Sync},
}

type Deps struct {
	Progress    ProgressWriter
	Analytics   Invalidator
	Jobs        Recalculator
	Users       UserReader
	Articles    ArticleReader
	Progression *article.Progression
	Mailer      mail.Mailer
	Email       CompletionEmailConfig
	Logger      *slog.Logger
}

// Register builds every listener and binds it to the bus following Routes.
// The API and the worker both call it so queued listeners resolve by name.
func Register(bus *events.Bus, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "listeners")

	byName := map[string]events.Listener{}
	for _, l := range []events.Listener{
		NewUpdateUserProgress(deps.Progress, deps.Analytics),
		NewUnlockNextArticle(deps.Progression, logger),
		NewSendCompletionEmail(deps.Users, deps.Articles, deps.Progression, deps.Mailer, deps.Email, logger),
		NewRecalculateAnalytics(deps.Analytics, deps.Jobs),
	} {
		byName[l.Name()] = l
	}

	for _, r := range Routes {
		bus.Listen(r.Event, byName[r.Listener], r.Mode)
	}
}
