// api/handlers/query_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siftmail/sift-backend/api/middleware"
	"github.com/siftmail/sift-backend/api/models"
	"github.com/siftmail/sift-backend/internal/domain"
	"github.com/siftmail/sift-backend/internal/gateway"
)

// QueryHandler exposes the declarative query gateway over POST /query.
type QueryHandler struct {
	Gateway *gateway.Gateway
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(gw *gateway.Gateway) *QueryHandler {
	return &QueryHandler{Gateway: gw}
}

// Query parses an operation request and executes it on behalf of the
// session user resolved by SessionAuth. Success and failure both use the
// {data, error} envelope; failures are mapped by the error middleware.
func (h *QueryHandler) Query(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*domain.User)

	var req gateway.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Query binding error: %v", err)
		_ = c.Error(err)
		return
	}

	result, err := h.Gateway.Execute(c.Request.Context(), &req, user)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.QueryResponse{Data: result.Data, Error: nil})
}
