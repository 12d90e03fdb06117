package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sharebook/sharebook/internal/api/respond"
	"github.com/sharebook/sharebook/internal/llm"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
)

// Websocket timings. pingPeriod must stay below pongWait.
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 << 10
)

// Assistant is the writing assistant.
type Assistant interface {
	Generate(ctx context.Context, userID string, req services.AssistantRequest) (string, error)
	Stream(ctx context.Context, userID string, req services.AssistantRequest) (<-chan llm.StreamChunk, error)
	ChapterIdeas(ctx context.Context, userID, provider, title, description string, n int) ([]services.ChapterIdea, error)
	Improve(ctx context.Context, userID, provider, text, instruction string) (string, error)
}

// Handlers serves /assistant
type Handlers struct {
	assistant  Assistant
	upgrader   websocket.Upgrader
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewHandlers creates the assistant handlers. allowedOrigins restricts which
// browser origins may open the websocket; "*" allows any.
func NewHandlers(assistant Assistant, allowedOrigins []string) *Handlers {
	return &Handlers{
		assistant: assistant,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pongWait:   wsPongWait,
		pingPeriod: wsPingPeriod,
	}
}

// originChecker allows requests without an Origin header (non-browser clients)
// and origins present in allowed.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// IdeasRequest asks for a chapter outline.
type IdeasRequest struct {
	Provider    string `json:"provider"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// ImproveRequest asks for a rewrite of text.
type ImproveRequest struct {
	Provider    string `json:"provider"`
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
}

// Generate returns the full completion
// @Summary      Generate text with the writing assistant
// @Tags         Assistant
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        body  body      services.AssistantRequest  true  "Prompt"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/assistant/generate [post]
func (h *Handlers) Generate(c *gin.Context) {
	var req services.AssistantRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	text, err := h.assistant.Generate(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// Stream sends the completion as server-sent events. Each chunk is a
// data: {"text": ...} event; the stream ends with data: [DONE] or an
// event: error. A disconnected client cancels the request context, which
// closes chunks.
// POST /api/v1/assistant/stream
func (h *Handlers) Stream(c *gin.Context) {
	var req services.AssistantRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	chunks, err := h.assistant.Stream(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Writer.Flush()

	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			writeEvent(c.Writer, "error", gin.H{"error": clientMessage(chunk.Err)})
		case chunk.Done:
			fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		default:
			writeEvent(c.Writer, "", gin.H{"text": chunk.Text})
		}
		c.Writer.Flush()
		if chunk.Err != nil || chunk.Done {
			return
		}
	}
}

func writeEvent(w io.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// wsMessage is sent to websocket clients.
type wsMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsWriter serialises writes on one connection. The ping goroutine and the
// stream loop write concurrently.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(m wsMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(m)
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// WebSocket upgrades to a websocket on which the client sends
// AssistantRequest JSON messages one at a time. Each request is answered
// with chunk messages followed by done or error.
// GET /api/v1/assistant/ws
func (h *Handlers) WebSocket(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &wsWriter{conn: conn}
	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(h.pongWait)) }

	conn.SetReadLimit(wsMaxMessage)
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	// Reads run on their own goroutine so a closed connection cancels an
	// in-flight completion.
	requests := make(chan services.AssistantRequest)
	go func() {
		defer cancel()
		defer close(requests)
		for {
			var req services.AssistantRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read ended", "user_id", userID, "error", err)
				}
				return
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
			// Restart the idle clock once the request has been taken.
			extend()
		}
	}()

	// Pings keep going while a long completion is being streamed.
	go func() {
		ticker := time.NewTicker(h.pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := h.streamToSocket(ctx, w, userID, req); err != nil {
				return
			}
		}
	}
}

// streamToSocket answers one request. The returned error is a write failure;
// assistant errors are sent to the client and do not end the connection.
func (h *Handlers) streamToSocket(ctx context.Context, w *wsWriter, userID string, req services.AssistantRequest) error {
	chunks, err := h.assistant.Stream(ctx, userID, req)
	if err != nil {
		return w.send(wsMessage{Type: "error", Error: clientMessage(err)})
	}
	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			return w.send(wsMessage{Type: "error", Error: clientMessage(chunk.Err)})
		case chunk.Done:
			return w.send(wsMessage{Type: "done"})
		}
		if err := w.send(wsMessage{Type: "chunk", Text: chunk.Text}); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// clientMessage hides internal errors the same way respond.Error does.
func clientMessage(err error) string {
	if respond.Status(err) == http.StatusInternalServerError {
		slog.Error("assistant stream failed", "error", err)
		return "Internal server error"
	}
	return err.Error()
}

// ChapterIdeas suggests a chapter outline
// POST /api/v1/assistant/chapter-ideas
func (h *Handlers) ChapterIdeas(c *gin.Context) {
	var req IdeasRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	ideas, err := h.assistant.ChapterIdeas(c.Request.Context(), middleware.CurrentUserID(c),
		req.Provider, req.Title, req.Description, req.Count)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ideas": ideas})
}

// Improve rewrites text according to an instruction
// POST /api/v1/assistant/improve
func (h *Handlers) Improve(c *gin.Context) {
	var req ImproveRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	text, err := h.assistant.Improve(c.Request.Context(), middleware.CurrentUserID(c), req.Provider, req.Text, req.Instruction)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}
