package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/franckalain/mealscan/internal/capture"
	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second

	// Frames and imports arrive base64 encoded inside JSON.
	messageOverhead = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type imageData struct {
	Image string `json:"image"`
	Name  string `json:"name,omitempty"`
}

// client is one WebSocket connection with its own camera feed and scan
// session.
type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	feed    *capture.RemoteFeed
	session *session.Session
	facing  capture.Facing
	log     logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	ops    sync.WaitGroup
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	cl := s.newClient(conn)
	s.clients.Store(cl.id, cl)
	cl.log.Info("client connected")

	defer func() {
		s.clients.Delete(cl.id)
		cl.cancel()
		cl.session.Close()
		cl.feed.Close()
		cl.ops.Wait()
		conn.Close()
		cl.log.Info("client disconnected")
	}()

	done := make(chan struct{})
	defer close(done)
	go cl.keepAlive(done)

	cl.send("state", newStatePayload(cl.session.Snapshot(), cl.facing))
	s.readLoop(cl)
}

func (s *Server) newClient(conn *websocket.Conn) *client {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	cl := &client{
		id:     id,
		conn:   conn,
		feed:   capture.NewRemoteFeed(),
		facing: capture.Facing(s.cfg.Capture.Facing),
		log:    s.log.WithField("client_id", id),
		ctx:    ctx,
		cancel: cancel,
	}
	if cl.facing == "" {
		cl.facing = capture.FacingEnvironment
	}

	camera := capture.NewController(cl.feed, s.cfg.Capture, cl.log)
	cl.session = session.New(camera, s.recognizer, s.diary,
		session.WithPolicy(s.policy),
		session.WithLogger(cl.log),
		session.WithObserver(func(snap session.Snapshot) {
			cl.send("state", newStatePayload(snap, cl.facing))
		}),
	)
	return cl
}

func (s *Server) readLoop(cl *client) {
	if limit := readLimit(s.cfg.Capture.MaxImportBytes); limit > 0 {
		cl.conn.SetReadLimit(limit)
	}
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.log.WithError(err).Warn("Error reading message")
			}
			return
		}
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			cl.sendError(apperrors.Wrap(apperrors.ErrInvalid, "invalid message format", err))
			continue
		}
		s.handleMessage(cl, msg)
	}
}

func (s *Server) handleMessage(cl *client, msg inboundMessage) {
	switch msg.Type {
	case "open":
		cl.run("open", cl.session.Open)
	case "frame":
		frame, err := decodeImage(msg.Data)
		if err != nil {
			cl.sendError(err)
			return
		}
		cl.feed.Push(frame)
	case "feed_denied":
		cl.feed.Deny()
	case "capture":
		cl.run("capture", cl.session.Capture)
	case "import":
		data, err := decodeImage(msg.Data)
		if err != nil {
			cl.sendError(err)
			return
		}
		cl.run("import", func(ctx context.Context) error {
			return cl.session.Import(ctx, bytes.NewReader(data))
		})
	case "retake":
		cl.run("retake", cl.session.Retake)
	case "confirm":
		cl.run("confirm", func(ctx context.Context) error {
			entry, err := cl.session.Confirm(ctx)
			if err != nil {
				return err
			}
			cl.send("entry_added", newEntryPayload(entry))
			s.broadcast("diary", s.diaryPayload())
			return nil
		})
	case "cancel":
		if err := cl.session.Cancel(); err != nil {
			cl.reportRejection("cancel", err)
		}
	case "dismiss_error":
		cl.session.DismissError()
	case "get_diary":
		cl.send("diary", s.diaryPayload())
	case "get_progress":
		cl.send("progress", s.progressPayload())
	default:
		cl.sendError(apperrors.New(apperrors.ErrInvalid, "unknown message type: "+msg.Type))
	}
}

// run executes a blocking session operation off the read loop so that
// frames and cancellation keep flowing while it waits.
func (cl *client) run(op string, fn func(ctx context.Context) error) {
	cl.ops.Add(1)
	go func() {
		defer cl.ops.Done()
		if err := fn(cl.ctx); err != nil {
			cl.reportRejection(op, err)
		}
	}()
}

// reportRejection sends commands the session refused without changing
// state. Failures the session records are already part of the state
// message.
func (cl *client) reportRejection(op string, err error) {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrSessionBusy, apperrors.ErrInvalidTransition, apperrors.ErrInvalid:
		cl.log.WithError(err).WithField("op", op).Debug("command rejected")
		cl.sendError(err)
	default:
		cl.log.WithError(err).WithField("op", op).Debug("command failed")
	}
}

func (cl *client) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			cl.writeMu.Lock()
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := cl.conn.WriteMessage(websocket.PingMessage, nil)
			cl.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (cl *client) send(msgType string, data any) {
	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()

	cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := cl.conn.WriteJSON(outboundMessage{Type: msgType, Data: data}); err != nil {
		cl.log.WithError(err).WithField("type", msgType).Debug("Error sending message")
	}
}

func (cl *client) sendError(err error) {
	cl.send("error", newErrorPayload(err))
}

// readLimit sizes the largest accepted message for an import of maxImport
// bytes. Zero means imports, and so messages, are unbounded.
func readLimit(maxImport int64) int64 {
	if maxImport <= 0 {
		return 0
	}
	return maxImport*4/3 + messageOverhead
}

// decodeImage reads a base64 image from a message, with or without a data
// URL prefix.
func decodeImage(raw json.RawMessage) ([]byte, error) {
	var data imageData
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalid, "missing image data")
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid image data", err)
	}

	encoded := data.Image
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if encoded == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "missing image data")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid image format", err)
	}
	return decoded, nil
}
