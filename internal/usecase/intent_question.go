package usecase

import (
	"context"
	"log/slog"

	"partnerbot/internal/domain"
)

const replyNoAnswer = "I couldn't find an answer to that. Try rephrasing, or type `help` to see what I can do."

// QuestionIntent answers free-form questions from the knowledge base. It is
// also the fallback path when the classifier recognizes nothing.
type QuestionIntent struct {
	qa     domain.QAService
	logger *slog.Logger
}

// NewQuestionIntent creates the handler.
func NewQuestionIntent(qa domain.QAService, logger *slog.Logger) *QuestionIntent {
	return &QuestionIntent{qa: qa, logger: logger}
}

func (i *QuestionIntent) Name() string                          { return QuestionIntentName }
func (i *QuestionIntent) RequiredPermission() domain.Permission { return domain.PermissionAnyRole }
func (i *QuestionIntent) HelpText() string {
	return "ask any question — I'll search the knowledge base"
}

func (i *QuestionIntent) Execute(ctx context.Context, turn *domain.Turn) (domain.OutboundMessage, error) {
	answer, err := i.qa.Query(ctx, turn.Message.Content)
	if err != nil {
		return domain.OutboundMessage{}, domain.WrapOp("Question.Execute", err)
	}
	if answer == "" {
		return domain.OutboundMessage{Content: replyNoAnswer}, nil
	}
	return domain.OutboundMessage{Content: answer}, nil
}
