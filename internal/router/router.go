package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/handler"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/auth"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/constants"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/metrics"
)

// New builds the HTTP router.
func New(
	roomHandler *handler.RoomHandler,
	collabWS *handler.CollabWSHandler,
	health *handler.HealthHandler,
	verifier *auth.JWT,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)
	r.GET(constants.PathMetrics, gin.WrapH(metrics.Handler()))

	// REST room records (JWT-protected)
	rooms := r.Group("/rooms", handler.RequireAuth(verifier))
	{
		rooms.POST("", roomHandler.Create)
		rooms.GET("/:key", roomHandler.Get)
		rooms.GET("/:key/history", roomHandler.History)
	}

	// WebSocket: authenticates inside the handler, before the upgrade.
	r.GET(constants.PathWS, collabWS.ServeWS)

	return r
}
