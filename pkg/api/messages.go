package api

import (
	"context"
	"fmt"

	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// Conversations retrieves one page of the viewer's conversations
func (a *API) Conversations(ctx context.Context, page, limit int) (paging.Page[Conversation], error) {
	logger.Debug("Fetching conversations", "page", page)
	return getList[Conversation](ctx, a, "/conversations", page, limit)
}

// Messages retrieves one page of a conversation, newest first
func (a *API) Messages(ctx context.Context, conversationID string, page, limit int) (paging.Page[Message], error) {
	logger.Debug("Fetching messages", "conversation_id", conversationID, "page", page)
	return getList[Message](ctx, a, fmt.Sprintf("/conversations/%s/messages", conversationID), page, limit)
}

// SendMessage posts a message to a conversation
func (a *API) SendMessage(ctx context.Context, conversationID, body string) (*Message, error) {
	logger.Debug("Sending message", "conversation_id", conversationID)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Message](req.
		SetBody(map[string]string{"body": body}).
		Post(fmt.Sprintf("/conversations/%s/messages", conversationID)))
}
