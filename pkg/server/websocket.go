package server

import (
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// wsStream adapts a WebSocket to the byte stream the loop reads. Each text
// message is one line of input; a newline is supplied if the client left it
// off. Writes go out as text messages.
type wsStream struct {
	ws   *websocket.Conn
	r    io.Reader
	last byte
	eol  bool // owe the reader a newline
}

func newWSStream(ws *websocket.Conn) *wsStream { return &wsStream{ws: ws} }

func (s *wsStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if s.eol {
			s.eol = false
			s.last = '\n'
			p[0] = '\n'
			return 1, nil
		}
		if s.r == nil {
			_, r, err := s.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.r = r
			s.last = '\n'
		}
		n, err := s.r.Read(p)
		if n > 0 {
			s.last = p[n-1]
		}
		if err == io.EOF {
			s.r = nil
			s.eol = s.last != '\n'
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.ws.Close()
}

func (s *wsStream) SetWriteDeadline(t time.Time) error { return s.ws.SetWriteDeadline(t) }
