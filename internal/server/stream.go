package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/fmueller/voxsub/internal/whisper"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	audioReadWait = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is the envelope for everything sent over the run socket.
type streamMessage struct {
	Type   string           `json:"type"`
	Event  *pipeline.Event  `json:"event,omitempty"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// socketSink publishes progress events to one websocket connection.
type socketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketSink) Publish(_ context.Context, event pipeline.Event) error {
	return s.send(streamMessage{Type: "progress", Event: &event})
}

func (s *socketSink) send(msg streamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

// handleRunStream upgrades to a websocket. The client sends the audio as one
// binary message; the server replies with progress messages and a final result.
// Run options are taken from the query string.
func (s *Server) handleRunStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.opts.MaxUploadBytes)
	sink := &socketSink{conn: conn}

	req, err := s.requestFromParams(c.Query, whisper.Audio{})
	if err != nil {
		_ = sink.send(streamMessage{Type: "error", Error: err.Error()})
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(audioReadWait))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.Warn("read audio from websocket", zap.Error(err))
		return
	}
	if messageType != websocket.BinaryMessage || len(data) == 0 {
		_ = sink.send(streamMessage{Type: "error", Error: "expected one binary message with audio data"})
		return
	}
	req.Audio = whisper.Audio{Data: data, Name: c.DefaultQuery("name", "audio.wav")}
	req.Sink = sink

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RunTimeout)
	defer cancel()
	result := s.runner.Run(ctx, req)

	if err := sink.send(streamMessage{Type: "result", Result: &result}); err != nil {
		s.logger.Warn("send run result", zap.Error(err))
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
}
