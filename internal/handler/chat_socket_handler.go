package handler

import (
	"context"
	"encoding/json"
	"time"

	"finance-rag-be/internal/dto"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/internal/pkg/serverutils"
	"finance-rag-be/internal/service"
	internalWS "finance-rag-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ChatSocketHandler serves the chat websocket. Each inbound ChatRequest frame
// gets exactly one answer or error frame back; index notifications from the
// hub are interleaved.
type ChatSocketHandler struct {
	chatService service.IChatService
	hub         *internalWS.Hub
	logger      logger.ILogger
}

func NewChatSocketHandler(chatService service.IChatService, hub *internalWS.Hub, log logger.ILogger) *ChatSocketHandler {
	return &ChatSocketHandler{
		chatService: chatService,
		hub:         hub,
		logger:      log,
	}
}

func (h *ChatSocketHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat/v1/ws", h.ServeWs)
}

// ServeWs upgrades the connection and hands it to the hub.
func (h *ChatSocketHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ChatSocketHandler", "Starting WebSocket session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		internalWS.ServeWs(h.hub, conn, h.HandleFrame)
		h.logger.Info("ChatSocketHandler", "WebSocket session ended", map[string]interface{}{"remote": conn.RemoteAddr().String()})
	})(c)
}

// HandleFrame answers one chat request frame.
func (h *ChatSocketHandler) HandleFrame(ctx context.Context, payload []byte) dto.WsMessage {
	var req dto.ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorFrame(fiber.NewError(fiber.StatusBadRequest, "frame is not a valid chat request"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return errorFrame(err)
	}

	res, err := h.chatService.Ask(ctx, &req)
	if err != nil {
		return errorFrame(err)
	}
	return dto.WsMessage{Type: dto.WsTypeAnswer, Data: res, Timestamp: time.Now().UTC()}
}

func errorFrame(err error) dto.WsMessage {
	_, resp := serverutils.MapError(err)
	return dto.WsMessage{Type: dto.WsTypeError, Error: resp, Timestamp: time.Now().UTC()}
}
