package route

import (
	"net/http"
	"os"
	"path/filepath"

	"detectdemo/internal/config"
	"detectdemo/internal/handler"
	"detectdemo/internal/logger"
	"detectdemo/internal/middleware"
	"detectdemo/internal/repository"
	"detectdemo/internal/service/websocket"
)

// Dependencies groups what the routes hand to their handlers. The
// repositories are nil when archiving is disabled.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Pipeline      handler.Pipeline
	Previewer     handler.Previewer
	Hub           *websocket.HubService
	SnapshotRepo  repository.SnapshotRepository
	DetectionRepo repository.DetectionRepository
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg, log := deps.Config, deps.Logger
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Pipeline intents
	mux.HandleFunc("/api/detect/upload", handler.UploadHandler(deps.Pipeline, log))
	mux.HandleFunc("/api/camera/start", handler.StartCameraHandler(deps.Pipeline, log))
	mux.HandleFunc("/api/camera/capture", handler.CaptureHandler(deps.Pipeline, log))
	mux.HandleFunc("/api/camera/stop", handler.StopCameraHandler(deps.Pipeline, log))
	mux.HandleFunc("/api/camera/preview", handler.PreviewHandler(deps.Previewer))
	mux.HandleFunc("/api/live/start", handler.StartLiveHandler(deps.Pipeline, log))
	mux.HandleFunc("/api/live/stop", handler.StopLiveHandler(deps.Pipeline, log))

	// Read model
	mux.HandleFunc("/api/state", handler.StateHandler(deps.Pipeline, log))
	mux.HandleFunc("/api/stats", handler.StatsHandler(deps.Pipeline, log))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Pipeline, deps.Hub, log))

	// History
	if deps.SnapshotRepo != nil {
		mux.HandleFunc("/api/history", handler.HistoryHandler(cfg, log, deps.SnapshotRepo, deps.DetectionRepo))
		mux.HandleFunc("/api/history/stats", handler.HistoryStatsHandler(log, deps.SnapshotRepo))
		mux.HandleFunc("/api/history/view", handler.ViewSnapshotHandler(cfg))
		mux.HandleFunc("/api/history/delete", handler.DeleteSnapshotHandler(cfg, log, deps.SnapshotRepo))
		mux.HandleFunc("/api/history/clear", handler.ClearHistoryHandler(cfg, log, deps.SnapshotRepo))
	}

	// Log endpoints
	mux.HandleFunc("/logs/", handler.LogsHandler(cfg, log))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /history -> static/history.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.AuthMiddleware(cfg.Password, mux)
}
