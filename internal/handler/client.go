package handler

import (
	"encoding/json"
	"net/http"

	"detectdemo/internal/dto"
	"detectdemo/internal/logger"
	"detectdemo/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers a viewer with the hub, which sends the
// current state first and then every later change.
func ViewWebsocketHandler(p Pipeline, hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		// The hub reads the state when it registers the viewer, so no
		// change can fall between the initial message and the broadcasts.
		hub.Register(connection, func() ([]byte, error) {
			return json.Marshal(dto.NewStateMessage(p.State()))
		})
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
