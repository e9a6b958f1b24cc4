package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"detectdemo/internal/config"
	"detectdemo/internal/logger"
)

var logLevels = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

// logFile maps /logs/<level>[/clear] to its file name.
func logFile(path string) (string, bool) {
	level := strings.TrimPrefix(path, "/logs/")
	level = strings.TrimSuffix(level, "/clear")
	name, ok := logLevels[level]
	return name, ok
}

// LogsHandler serves GET /logs/<level> as text/plain and truncates the file
// on POST /logs/<level>/clear.
func LogsHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := logFile(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		if strings.HasSuffix(r.URL.Path, "/clear") {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			logger.CleanLogs(name)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		serveLogFile(w, r, cfg.LogDirectory, name)
	}
}

// serveLogFile sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}
