package api

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/api/middleware"
	"gestionlearn.com/internal/auth"
	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/infra"
)

const localsWsPrincipal = "wsPrincipal"

// InitWebsocket registers /ws. The upgrade is refused unless the request
// carries a valid access token; the connection then receives the events
// addressed to its user or role.
func InitWebsocket(app *fiber.App, tokens *auth.TokenManager, hub *infra.WsManager) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := middleware.AccessToken(c)
		if token == "" {
			return domain.NewUnauthorizedError(domain.CodeAuthRequired, "Authentication required")
		}
		claims, err := tokens.ParseAccess(token)
		if err != nil {
			return domain.NewUnauthorizedError(domain.CodeInvalidToken, "Invalid access token")
		}

		c.Locals(localsWsPrincipal, claims.Principal())
		return c.Next()
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		p, ok := c.Locals(localsWsPrincipal).(domain.Principal)
		if !ok {
			c.Close()
			return
		}
		log.Printf("New WS connection, user=%d role=%s", p.ID, p.Role)

		if !hub.Connect(infra.UserConnection{UserID: p.ID, Role: p.Role, Conn: c}) {
			c.Close()
			return
		}
		defer hub.Disconnect(c)

		// Clients only listen; anything they send is read and dropped so
		// close frames are processed.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Println("ws read error:", err)
				}
				return
			}
		}
	}))
}
