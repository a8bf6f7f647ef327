package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// ChatHandler serves chat for both partitions. The participant is always
// the signed-in identity.
type ChatHandler struct {
	chatService service.ChatService
	log         logging.Logger
}

func NewChatHandler(chatService service.ChatService, log logging.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

func (h *ChatHandler) ListThreads(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	threads, err := h.chatService.ListThreads(c.Request.Context(), sess.IdentityID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve conversations.")
		return
	}
	c.JSON(http.StatusOK, threads)
}

// OpenThread godoc
// @Summary Open (or reopen) the conversation with a client
// @Tags Chat
// @Security BearerAuth
// @Router /admin/clients/{clientId}/chat [post]
func (h *ChatHandler) OpenThread(c *gin.Context) {
	coachID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	thread, err := h.chatService.OpenThread(c.Request.Context(), coachID, clientID)
	if err != nil {
		respondError(c, h.log, err, "Failed to open conversation.")
		return
	}
	c.JSON(http.StatusOK, thread)
}

// ClientThread godoc
// @Summary The signed-in client's conversation with the coach
// @Tags Chat
// @Security BearerAuth
// @Router /client/chat [get]
func (h *ChatHandler) ClientThread(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	thread, err := h.chatService.ClientThread(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, h.log, err, "Failed to open conversation.")
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	msgs, err := h.chatService.Messages(c.Request.Context(), c.Param("threadId"), sess.IdentityID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve messages.")
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	msg, err := h.chatService.Send(c.Request.Context(), c.Param("threadId"), sess.IdentityID, req.Text)
	if err != nil {
		respondError(c, h.log, err, "Failed to send message.")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Stream godoc
// @Summary Live messages of a thread as Server-Sent Events
// @Description The subscription ends when the client disconnects.
// @Tags Chat
// @Security BearerAuth
// @Router /chats/{threadId}/stream [get]
func (h *ChatHandler) Stream(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	ctx := c.Request.Context()
	threadID := c.Param("threadId")

	msgs, err := h.chatService.Subscribe(ctx, threadID, sess.IdentityID)
	if err != nil {
		respondError(c, h.log, err, "Failed to subscribe to conversation.")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case m, ok := <-msgs:
			if !ok {
				return false
			}
			c.SSEvent("message", m)
			return true
		}
	})
	h.log.Info(ctx, "chat stream closed", "threadId", threadID, "userId", sess.IdentityID)
}
