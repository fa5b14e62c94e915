package restapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/germanamz/finassist/pkg/logging"
	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// serveWS upgrades the connection and answers every inbound
// {tool_name, arguments} message with one toolbox.Result, in order.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := websocket.Accept(upgradeWriter{c.Writer}, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := c.Request.Context()
	log := logging.FromContext(ctx, s.logger)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, ctx.Err()) {
					log.Debug("websocket read", zap.Error(err))
				}
			}
			return
		}

		res := s.wsCall(c, data)
		if err := wsjson.Write(ctx, conn, res); err != nil {
			log.Debug("websocket write", zap.Error(err))
			return
		}
	}
}

func (s *Server) wsCall(c *gin.Context, data []byte) toolbox.Result {
	var req toolCallRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return toolbox.Fail(toolbox.KindInvalidArguments, "invalid message: %v", err)
	}

	if req.ToolName == "" {
		return toolbox.Fail(toolbox.KindInvalidArguments, "tool_name is required")
	}

	if req.Arguments == nil {
		req.Arguments = map[string]any{}
	}

	res, err := s.caller.Call(c.Request.Context(), req.ToolName, req.Arguments)
	if err != nil {
		return toolbox.Fail(toolbox.KindHandler, "tool backend unavailable: %v", err)
	}

	return res
}

// upgradeWriter hijacks through the net/http writer under gin. gin refuses to
// hijack once the status line is out, and the handshake sends it first.
type upgradeWriter struct {
	gin.ResponseWriter
}

func (w upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	var rw http.ResponseWriter = w.ResponseWriter
	if u, ok := rw.(interface{ Unwrap() http.ResponseWriter }); ok {
		rw = u.Unwrap()
	}

	return http.NewResponseController(rw).Hijack()
}
