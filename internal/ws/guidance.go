package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/repository"
	"github.com/misolabs/miso-api/internal/service"
	"github.com/misolabs/miso-api/internal/session"
	"github.com/misolabs/miso-api/internal/speech"
	"go.uber.org/zap"
)

// WebSocket message types for the guidance protocol.
const (
	MsgTypeFrame          = "frame"           // Client pushes a camera frame
	MsgTypeNextStep       = "next_step"       // Client advances to the next step
	MsgTypePreviousStep   = "previous_step"   // Client goes back a step
	MsgTypeRepeatStep     = "repeat_step"     // Client asks for the step again
	MsgTypePauseAnalysis  = "pause_analysis"  // Client pauses the camera loop
	MsgTypeResumeAnalysis = "resume_analysis" // Client resumes the camera loop
	MsgTypeStepChanged    = "step_changed"    // Server announces the active step
	MsgTypeAnalysis       = "analysis"        // Server shares a completed analysis cycle
	MsgTypeGuidance       = "guidance"        // Server shares spoken guidance text
	MsgTypeSpeech         = "speech"          // Server pushes synthesized audio
	MsgTypeRecipeComplete = "recipe_complete" // Server announces completion
	MsgTypeError          = "error"           // Error message
	MsgTypeConnected      = "connected"       // Connection confirmed
)

// WSMessage is the envelope for all messages sent over the guidance WebSocket.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FramePayload carries one camera frame from the client.
type FramePayload struct {
	Data string `json:"data"` // base64-encoded JPEG
}

// StepChangedPayload announces the active step.
type StepChangedPayload struct {
	StepNumber  int    `json:"step_number"`
	Instruction string `json:"instruction"`
}

// GuidancePayload carries spoken guidance text.
type GuidancePayload struct {
	Text string `json:"text"`
}

// SpeechPayload carries synthesized audio for the client to play.
type SpeechPayload struct {
	Audio string `json:"audio"` // base64-encoded mp3
}

// ErrorPayload carries an error message to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectedPayload confirms a successful connection.
type ConnectedPayload struct {
	SessionID   string `json:"session_id"`
	RecipeID    uint   `json:"recipe_id"`
	RecipeTitle string `json:"recipe_title"`
	StepCount   int    `json:"step_count"`
}

// GuidanceHandler manages WebSocket connections for guided cooking. Each
// connection gets its own cooking session, speech engine, and analysis
// scheduler; the hub fans session events out to any companion viewers.
type GuidanceHandler struct {
	Hub       *Hub
	Cfg       *config.Config
	Repo      repository.RecipeRepo
	Vision    *service.VisionService
	Retrieval *service.RetrievalService
	Guidance  *service.GuidanceService
	Synth     ai.SpeechSynthesizer
	Archiver  service.FrameArchiver // optional
}

// NewGuidanceHandler returns a new GuidanceHandler.
func NewGuidanceHandler(hub *Hub, cfg *config.Config, repo repository.RecipeRepo, vision *service.VisionService, retrieval *service.RetrievalService, guidance *service.GuidanceService, synth ai.SpeechSynthesizer) *GuidanceHandler {
	return &GuidanceHandler{
		Hub:       hub,
		Cfg:       cfg,
		Repo:      repo,
		Vision:    vision,
		Retrieval: retrieval,
		Guidance:  guidance,
		Synth:     synth,
	}
}

// upgrader is configured for guidance WebSocket upgrades.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		switch origin {
		case "https://misolabs.app",
			"https://www.misolabs.app",
			"https://api.misolabs.app":
			return true
		}
		// Allow localhost for development
		if strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost" {
			return true
		}
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// frameBuffer holds the most recent frame pushed by the client. The
// scheduler pulls from it at its own pace; frames arriving faster than
// the analysis rate simply overwrite each other.
type frameBuffer struct {
	mu    sync.Mutex
	frame []byte
}

func (b *frameBuffer) Store(frame []byte) {
	b.mu.Lock()
	b.frame = frame
	b.mu.Unlock()
}

func (b *frameBuffer) CaptureFrame(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil, service.ErrNoFrame
	}
	return b.frame, nil
}

// clientPlayer delivers synthesized audio to the cooking client's device.
type clientPlayer struct {
	client *Client
}

func (p *clientPlayer) Play(ctx context.Context, audio []byte) error {
	payload, _ := json.Marshal(SpeechPayload{
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
	msg, _ := json.Marshal(WSMessage{Type: MsgTypeSpeech, Payload: payload})
	p.client.TrySend(msg)
	return nil
}

// HandleGuidanceSession upgrades an HTTP request to a WebSocket connection
// for guided cooking. Authentication is done via a "token" query parameter
// because WebSocket connections cannot easily use Authorization headers.
func (gh *GuidanceHandler) HandleGuidanceSession(c *gin.Context) {
	log := logger.Get()

	recipeID, err := strconv.ParseUint(c.Param("recipe_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "recipe_id must be a positive integer"})
		return
	}

	userID, ok := gh.authenticate(c)
	if !ok {
		return
	}

	recipe, err := gh.Repo.GetRecipeByID(uint(recipeID))
	if err != nil {
		var notFound repository.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Recipe not found"})
			return
		}
		log.Error("failed to load recipe for guidance session",
			zap.Uint64("recipe_id", recipeID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load recipe"})
		return
	}
	if len(recipe.Steps) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Recipe has no steps to guide"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed",
			zap.Uint64("recipe_id", recipeID),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return
	}

	frames := &frameBuffer{}
	scheduler := service.NewAnalysisScheduler(gh.Cfg, gh.Vision, gh.Retrieval, gh.Guidance)
	scheduler.Archiver = gh.Archiver

	client := &Client{
		Hub:  gh.Hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Done: make(chan struct{}),
	}
	engine := speech.NewEngine(gh.Synth, &clientPlayer{client: client})

	sess := session.New(gh.Cfg, recipe, scheduler, engine, frames, func(e session.Event) {
		gh.forwardEvent(client, e)
	})
	client.SessionID = sess.ID.String()
	client.UserID = userID
	gh.Hub.Register <- client

	connectedPayload, _ := json.Marshal(ConnectedPayload{
		SessionID:   sess.ID.String(),
		RecipeID:    recipe.ID,
		RecipeTitle: recipe.Title,
		StepCount:   len(recipe.Steps),
	})
	connectedMsg, _ := json.Marshal(WSMessage{
		Type:    MsgTypeConnected,
		Payload: connectedPayload,
	})
	client.TrySend(connectedMsg)

	log.Info("guidance session started",
		zap.String("session_id", sess.ID.String()),
		zap.Uint("recipe_id", recipe.ID),
		zap.Uint("user_id", userID),
	)

	go client.WritePump()
	go func() {
		defer func() {
			sess.Close()
			gh.Hub.Unregister <- client
			conn.Close()
			log.Info("guidance session ended",
				zap.String("session_id", sess.ID.String()),
				zap.Uint("user_id", userID),
			)
		}()
		sess.Start()
		client.ReadPump(func(cl *Client, data []byte) {
			gh.handleMessage(cl, sess, frames, data)
		})
	}()
}

// authenticate validates the query-param JWT and extracts the user id.
func (gh *GuidanceHandler) authenticate(c *gin.Context) (uint, bool) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "token query parameter is required"})
		return 0, false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(gh.Cfg.EnvVars.JwtSecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
		return 0, false
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token type"})
		return 0, false
	}

	idFloat, ok := claims["user_id"].(float64)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user_id in token"})
		return 0, false
	}
	return uint(idFloat), true
}

// handleMessage parses an incoming WebSocket message and routes it.
func (gh *GuidanceHandler) handleMessage(client *Client, sess *session.CookingSession, frames *frameBuffer, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		gh.sendError(client, "invalid message format")
		return
	}

	switch msg.Type {
	case MsgTypeFrame:
		gh.handleFrame(client, frames, msg.Payload)

	case MsgTypeNextStep:
		sess.NextStep()

	case MsgTypePreviousStep:
		sess.PreviousStep()

	case MsgTypeRepeatStep:
		sess.RepeatStep()

	case MsgTypePauseAnalysis:
		sess.StopAnalysis()

	case MsgTypeResumeAnalysis:
		sess.ResumeAnalysis()

	default:
		gh.sendError(client, "unknown message type: "+msg.Type)
	}
}

// handleFrame decodes and stores a pushed camera frame.
func (gh *GuidanceHandler) handleFrame(client *Client, frames *frameBuffer, payload json.RawMessage) {
	var frame FramePayload
	if err := json.Unmarshal(payload, &frame); err != nil {
		gh.sendError(client, "invalid frame payload")
		return
	}
	if frame.Data == "" {
		gh.sendError(client, "frame data is required")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		gh.sendError(client, "frame data must be base64-encoded")
		return
	}
	frames.Store(decoded)
}

// forwardEvent translates a session event into a room broadcast.
func (gh *GuidanceHandler) forwardEvent(client *Client, e session.Event) {
	var (
		msgType string
		payload []byte
	)

	switch e.Type {
	case session.EventStepChanged:
		msgType = MsgTypeStepChanged
		payload, _ = json.Marshal(StepChangedPayload{
			StepNumber:  e.StepNumber,
			Instruction: e.Instruction,
		})

	case session.EventAnalysis:
		msgType = MsgTypeAnalysis
		payload, _ = json.Marshal(e.Result)

	case session.EventGuidance:
		msgType = MsgTypeGuidance
		payload, _ = json.Marshal(GuidancePayload{Text: e.Guidance})

	case session.EventRecipeComplete:
		msgType = MsgTypeRecipeComplete
		payload, _ = json.Marshal(GuidancePayload{Text: e.Guidance})

	default:
		return
	}

	msg, _ := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	gh.Hub.Broadcast <- &RoomMessage{
		SessionID: client.SessionID,
		Message:   msg,
	}
}

// sendError sends an error message to a single client.
func (gh *GuidanceHandler) sendError(client *Client, message string) {
	errPayload, _ := json.Marshal(ErrorPayload{Message: message})
	errMsg, _ := json.Marshal(WSMessage{Type: MsgTypeError, Payload: errPayload})
	client.TrySend(errMsg)
}
