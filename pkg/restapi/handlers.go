package restapi

import (
	"net/http"

	"github.com/germanamz/finassist/pkg/logging"
	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Registry names the fixed routes dispatch to.
const (
	toolStockQuote      = "get_stock_quote"
	toolCompanyOverview = "get_company_overview"
	toolDaily           = "get_time_series_daily"
	toolIntraday        = "get_time_series_intraday"
	toolAsk             = "ask_openai"
)

type toolCallRequest struct {
	ToolName  string         `json:"tool_name" binding:"required"`
	Arguments map[string]any `json:"arguments"`
}

type symbolRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

type dailyRequest struct {
	Symbol     string `json:"symbol" binding:"required"`
	OutputSize string `json:"outputsize"`
}

type intradayRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Interval string `json:"interval"`
}

type chatRequest struct {
	Question string `json:"question" binding:"required"`
	Context  string `json:"context"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "detail": detail})
}

// bind decodes the JSON body into dst, answering 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

// dispatch calls a tool and writes the failure response itself. Transport
// failures answer 503, upstream failures 502 and every other tool failure 400.
func (s *Server) dispatch(c *gin.Context, name string, args map[string]any) (any, bool) {
	ctx := c.Request.Context()
	log := logging.FromContext(ctx, s.logger)

	res, err := s.caller.Call(ctx, name, args)
	if err != nil {
		log.Error("tool backend unavailable", zap.String("tool", name), zap.Error(err))
		fail(c, http.StatusServiceUnavailable, "tool backend unavailable: "+err.Error())
		return nil, false
	}

	if !res.Success {
		status := http.StatusBadRequest
		if res.ErrorKind == toolbox.KindUpstream {
			status = http.StatusBadGateway
		}
		log.Info("tool call failed",
			zap.String("tool", name),
			zap.String("kind", string(res.ErrorKind)),
			zap.String("error", res.Error),
		)
		fail(c, status, res.Error)
		return nil, false
	}

	return res.Data, true
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Financial MCP API Server", "version": Version})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "backend": s.backend})
}

func (s *Server) listTools(c *gin.Context) {
	tools, err := s.caller.List(c.Request.Context())
	if err != nil {
		s.logger.Error("list tools", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}

	if tools == nil {
		tools = []toolbox.Descriptor{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tools": tools})
}

func (s *Server) callTool(c *gin.Context) {
	var req toolCallRequest
	if !bind(c, &req) {
		return
	}

	if req.Arguments == nil {
		req.Arguments = map[string]any{}
	}

	if data, done := s.dispatch(c, req.ToolName, req.Arguments); done {
		ok(c, data)
	}
}

func (s *Server) stockQuote(c *gin.Context) {
	var req symbolRequest
	if !bind(c, &req) {
		return
	}

	if data, done := s.dispatch(c, toolStockQuote, map[string]any{"symbol": req.Symbol}); done {
		ok(c, data)
	}
}

func (s *Server) stockOverview(c *gin.Context) {
	var req symbolRequest
	if !bind(c, &req) {
		return
	}

	if data, done := s.dispatch(c, toolCompanyOverview, map[string]any{"symbol": req.Symbol}); done {
		ok(c, data)
	}
}

func (s *Server) stockDaily(c *gin.Context) {
	var req dailyRequest
	if !bind(c, &req) {
		return
	}

	args := map[string]any{"symbol": req.Symbol}
	if req.OutputSize != "" {
		args["outputsize"] = req.OutputSize
	}

	if data, done := s.dispatch(c, toolDaily, args); done {
		ok(c, data)
	}
}

func (s *Server) stockIntraday(c *gin.Context) {
	var req intradayRequest
	if !bind(c, &req) {
		return
	}

	args := map[string]any{"symbol": req.Symbol}
	if req.Interval != "" {
		args["interval"] = req.Interval
	}

	if data, done := s.dispatch(c, toolIntraday, args); done {
		ok(c, data)
	}
}

func (s *Server) aiChat(c *gin.Context) {
	var req chatRequest
	if !bind(c, &req) {
		return
	}

	args := map[string]any{"question": req.Question, "context": req.Context}
	if data, done := s.dispatch(c, toolAsk, args); done {
		ok(c, gin.H{"response": data})
	}
}

func (s *Server) financialQuery(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		fail(c, http.StatusBadRequest, "query is required")
		return
	}

	if data, done := s.dispatch(c, toolAsk, map[string]any{"question": query}); done {
		ok(c, gin.H{"query": query, "response": data})
	}
}

func (s *Server) financialAsk(c *gin.Context) {
	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	question, _ := req["question"].(string)
	if question == "" {
		fail(c, http.StatusBadRequest, "Question is required")
		return
	}

	if data, done := s.dispatch(c, toolAsk, map[string]any{"question": question}); done {
		ok(c, gin.H{"question": question, "answer": data})
	}
}
