package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// EventsClient streams live change events for one vault. The feed
// carries doc.updated and doc.deleted messages; the consumer decides
// what to do with them.
type EventsClient struct {
	url    string
	token  string
	logger *events.Logger

	// Connection state
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Channels
	feed chan models.VaultEvent
	errs chan error
	done chan struct{}

	// Heartbeat
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewEventsClient builds a client for one vault's event feed, deriving
// the WebSocket URL from the API base URL.
func NewEventsClient(baseURL, vaultID, token string, logger *events.Logger) *EventsClient {
	wsURL := strings.TrimSuffix(baseURL, "/")
	if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[len("http"):]
	}
	wsURL += "/api/v1/vaults/" + url.PathEscape(vaultID) + "/events"

	return &EventsClient{
		url:          wsURL,
		token:        token,
		logger:       logger.WithField("component", "events_client"),
		feed:         make(chan models.VaultEvent, 100),
		errs:         make(chan error, 10),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
	}
}

// Connect establishes the WebSocket connection and starts the read and
// heartbeat loops.
func (c *EventsClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	c.logger.WithField("url", c.url).Info("Connecting to event feed")

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.token)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("event feed connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("event feed connect failed: %w", err)
	}

	c.conn = conn
	c.closed = false

	go c.readLoop()
	go c.pingLoop()

	c.logger.Info("Event feed connected")
	return nil
}

// Events returns the event channel. It is closed when the feed ends.
func (c *EventsClient) Events() <-chan models.VaultEvent {
	return c.feed
}

// Errors returns the error channel.
func (c *EventsClient) Errors() <-chan error {
	return c.errs
}

// Close closes the connection. Safe to call more than once.
func (c *EventsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	if c.conn != nil {
		// Send close message
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

// readLoop decodes events until the connection ends.
func (c *EventsClient) readLoop() {
	defer func() {
		_ = c.Close()
		close(c.feed)
	}()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		// Set read deadline for pong
		_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))
			return nil
		})

		var event models.VaultEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.logger.WithError(err).Error("Event feed read error")
				select {
				case c.errs <- err:
				default:
				}
			}
			return
		}

		c.logger.WithFields(map[string]interface{}{
			"type": event.Type,
			"path": event.Path(),
		}).Debug("Received vault event")

		select {
		case c.feed <- event:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (c *EventsClient) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				return
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.WithError(err).Error("Ping failed")
				return
			}

		case <-c.done:
			return
		}
	}
}
