package handlers

import (
	"waitline/internal/auth"

	"github.com/gin-gonic/gin"
)

// Routes groups everything RegisterRoutes wires.
type Routes struct {
	Auth      *AuthHandler
	Queue     *QueueHandler
	Issuer    *auth.Issuer
	KioskKeys []string
	// WebSocket serves /api/queues/:id/ws when set.
	WebSocket gin.HandlerFunc
}

func RegisterRoutes(r gin.IRouter, rt Routes) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", rt.Auth.Login)
		authGroup.POST("/refresh", rt.Auth.RefreshToken)
	}

	api := r.Group("/api")
	{
		api.GET("/queues/:id/status", rt.Queue.Status)
		api.GET("/queues/:id/entries/:entryId", rt.Queue.EntryStatus)
		api.GET("/customers/:customerId/entries", rt.Queue.CustomerEntries)
		api.POST("/qr/join", rt.Queue.QRJoin)
		api.POST("/public/queues/:id/join", rt.Queue.PublicJoin)
		api.DELETE("/public/queues/:id/entries/:entryId", rt.Queue.Leave)
		if rt.WebSocket != nil {
			api.GET("/queues/:id/ws", rt.WebSocket)
		}
	}

	kiosk := r.Group("/api/kiosk", auth.KioskMiddleware(rt.KioskKeys))
	{
		kiosk.POST("/queues/:id/entries", rt.Queue.KioskJoin)
	}

	staff := r.Group("/api/staff", auth.StaffMiddleware(rt.Issuer))
	{
		staff.POST("/queues", rt.Queue.CreateQueue)
		staff.PATCH("/queues/:id/active", rt.Queue.SetActive)
		staff.GET("/queues/:id/qr-token", rt.Queue.QRToken)
		staff.POST("/queues/:id/entries", rt.Queue.StaffJoin)
		staff.POST("/queues/:id/call", rt.Queue.CallNext)
		staff.POST("/queues/:id/entries/:entryId/complete", rt.Queue.Complete)
		staff.POST("/queues/:id/entries/:entryId/cancel", rt.Queue.Cancel)
		staff.GET("/me", rt.Auth.Me)
		staff.POST("/queues/:id/presence", rt.Queue.Heartbeat)
		staff.DELETE("/queues/:id/presence", rt.Queue.StopServing)
	}
}
