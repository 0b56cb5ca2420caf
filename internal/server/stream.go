package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leandrotocalini/promptlab/internal/dispatch"
)

// streamFrame is one websocket message of a compare stream.
type streamFrame struct {
	Type    string            `json:"type"` // pending, settled, done, error
	Result  *dispatch.Result  `json:"result,omitempty"`
	Results []dispatch.Result `json:"results,omitempty"`
	Summary *dispatch.Summary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
}

const streamWriteTimeout = 10 * time.Second

// handleCompareStream upgrades to a websocket, reads one compare request,
// and pushes a frame per model state change followed by a done frame.
func (s *Server) handleCompareStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBody)
	var req compareRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.send(conn, streamFrame{Type: "error", Error: "Invalid request body"}) //nolint:errcheck // logged in send
		return
	}

	// Frames are written by one goroutine so a slow client never holds up
	// the dispatch: pending and settled per model, plus done or error.
	q := newFrameQueue(2*len(req.Models)+1, func(f streamFrame) error {
		return s.send(conn, f)
	})
	observe := func(res dispatch.Result) {
		frameType := "settled"
		if res.Status == dispatch.StatusPending {
			frameType = "pending"
		}
		q.push(streamFrame{Type: frameType, Result: &res})
	}

	results, err := s.dispatcher.DispatchObserved(r.Context(), req.toDispatch(), observe)
	if err != nil {
		msg := err.Error()
		var ve *dispatch.ValidationError
		if errors.As(err, &ve) {
			msg = ve.Reason
		}
		q.push(streamFrame{Type: "error", Error: msg})
		q.close()
		return
	}

	summary := dispatch.Summarize(results)
	q.push(streamFrame{
		Type:    "done",
		Results: dispatch.Ordered(results, req.Models),
		Summary: &summary,
	})
	q.close()
	conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // best-effort close
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// frameQueue hands frames to a single writer goroutine. push does not
// block as long as size covers every frame pushed. After the first write
// error the remaining frames are dropped.
type frameQueue struct {
	frames chan streamFrame
	done   chan struct{}
}

func newFrameQueue(size int, write func(streamFrame) error) *frameQueue {
	q := &frameQueue{
		frames: make(chan streamFrame, size),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		var failed bool
		for f := range q.frames {
			if failed {
				continue
			}
			failed = write(f) != nil
		}
	}()
	return q
}

func (q *frameQueue) push(f streamFrame) {
	q.frames <- f
}

// close stops accepting frames and waits for the writer to finish.
func (q *frameQueue) close() {
	close(q.frames)
	<-q.done
}

func (s *Server) send(conn *websocket.Conn, frame streamFrame) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)) //nolint:errcheck
	if err := conn.WriteJSON(frame); err != nil {
		s.logger.Debug("websocket write failed", "type", frame.Type, "error", err)
		return err
	}
	return nil
}
