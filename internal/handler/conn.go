package handler

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

const (
	// Время на запись сообщения клиенту
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Период ping; должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего конверта
	maxMessageSize = 64 * 1024

	sendBufferSize = 128
)

// wsConn - одно клиентское соединение. Исходящие записи идут через
// буферизованный канал и отдельный write loop, поэтому Push никогда не
// блокируется на медленном клиенте.
type wsConn struct {
	id   string
	user string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  logger.Logger
}

func newWSConn(user string, ws *websocket.Conn, log logger.Logger) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		user: user,
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

func (c *wsConn) start() {
	go c.writeLoop()
}

// Push реализует presence.Conn: сериализует пуш-событие и ставит его в
// очередь на отправку
func (c *wsConn) Push(action string, data interface{}) error {
	payload, err := json.Marshal(Event{Action: action, Data: data})
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *wsConn) respond(resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("Failed to marshal response", "error", err)
		return
	}
	if err := c.enqueue(payload); err != nil {
		c.log.Warn("Failed to enqueue response", "error", err, "user", c.user)
	}
}

// enqueue кладет payload в буфер отправки. Переполненный буфер означает
// безнадежно медленного клиента - соединение закрывается, чтобы не копить
// backpressure.
func (c *wsConn) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	case c.send <- payload:
		return nil
	default:
		c.close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("send buffer full")
	}
}

func (c *wsConn) close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}
