package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"weltgrid/action"
)

const (
	writeWait      = 1 * time.Second
	maxMessageSize = 8192

	pubResolution  = 100 * time.Millisecond
	pingResolution = 200 * time.Millisecond
	pongWait       = pingResolution * 4

	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = 10 * time.Second
)

var upgrader = websocket.Upgrader{}

// Message is the envelope a Client writes to its websocket: one event,
// tagged with the kind a client's JS switch dispatches on.
type Message struct {
	Kind    action.EventKind `json:"kind"`
	Event   action.Event     `json:"event"`
}

// Client streams one subscriber's events to its websocket connection at a
// bounded rate, adapted from the teacher's generic client[T] to push
// action.Event instead of an arbitrary view model, and to source its feed
// from a Hub subscription instead of a single shared updates channel.
type Client struct {
	hub      *Hub
	id       string
	events   <-chan action.Event
	unsub    func()
	ws       *websock
	rootCtx  context.Context
}

// NewClient upgrades the request to a websocket and subscribes it to hub.
func NewClient(hub *Hub, id string, w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}

	events, unsub := hub.Subscribe(id)
	return &Client{
		hub: hub, id: id, events: events, unsub: unsub,
		ws:      newWebsock(conn),
		rootCtx: r.Context(),
	}, nil
}

// Sync runs the read, ping-pong, and publish loops until the client
// disconnects or one of them errors; it always unsubscribes from the hub on
// return.
func (c *Client) Sync() error {
	defer c.unsub()

	group, groupCtx := errgroup.WithContext(c.rootCtx)
	group.Go(func() error { return c.readMessages(groupCtx) })
	group.Go(func() error { return c.pingPong(groupCtx) })
	group.Go(func() error { return c.publish(groupCtx) })
	return group.Wait()
}

var ErrPongDeadlineExceeded = errors.New("sync: client disconnect, pong deadline exceeded")

func (c *Client) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	defer close(pong)
	c.ws.conn.SetPongHandler(func(_ string) error {
		pong <- struct{}{}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := c.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (c *Client) ping(ctx context.Context) error {
	return c.ws.write(ctx, func(ws *websocket.Conn) error {
		return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	})
}

// readMessages only drains and discards client frames to keep the
// connection's read deadline serviced; the action surface for agent commands
// is HTTP, not this socket, so nothing a client sends here is acted on.
func (c *Client) readMessages(ctx context.Context) error {
	for {
		err := c.ws.read(ctx, func(ws *websocket.Conn) error {
			_, _, readErr := ws.ReadMessage()
			return readErr
		})
		if err != nil {
			return err
		}
	}
}

func (c *Client) publish(ctx context.Context) error {
	lastSent := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-c.events:
			if !ok {
				return nil
			}
			if time.Since(lastSent) < pubResolution {
				continue
			}
			lastSent = time.Now()

			msg := Message{Kind: evt.Kind, Event: evt}
			err := c.ws.write(ctx, func(ws *websocket.Conn) error {
				if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return fmt.Errorf("set write deadline: %w", err)
				}
				return ws.WriteJSON(msg)
			})
			if err != nil {
				return err
			}
		}
	}
}

// websock serializes concurrent reads and writes against one websocket
// connection, which gorilla/websocket requires be single-reader/single-
// writer at a time.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	conn     *websocket.Conn
}

func newWebsock(conn *websocket.Conn) *websock {
	conn.SetReadLimit(maxMessageSize)
	return &websock{readSem: make(chan struct{}, 1), writeSem: make(chan struct{}, 1), conn: conn}
}

func (s *websock) read(ctx context.Context, fn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case s.readSem <- struct{}{}:
		defer func() { <-s.readSem }()
		return fn(s.conn)
	case <-time.After(readDeadline):
		return errSockCongestion
	}
}

func (s *websock) write(ctx context.Context, fn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case s.writeSem <- struct{}{}:
		defer func() { <-s.writeSem }()
		return fn(s.conn)
	case <-time.After(writeDeadline):
		return errSockCongestion
	}
}

func (s *websock) close() {
	s.writeSem <- struct{}{}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	<-s.writeSem
	time.Sleep(closeGracePeriod)
	_ = s.conn.Close()
}

var errSockCongestion = errors.New("sync: sock op failed due to congestion")
