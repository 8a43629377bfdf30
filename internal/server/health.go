package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// HealthResponse is the JSON body of the /health endpoint.
type HealthResponse struct {
	Status       string         `json:"status"`
	Timestamp    string         `json:"timestamp"`
	Uptime       float64        `json:"uptime"`
	ResponseTime string         `json:"responseTime"`
	Services     HealthServices `json:"services"`
	Environment  string         `json:"environment"`
	Model        string         `json:"model"`
}

// HealthServices reports each dependency as "ok" or "error".
type HealthServices struct {
	Gemini string `json:"gemini"`
	Qdrant string `json:"qdrant"`
	Server string `json:"server"`
}

// HealthChecker is the storage dependency of the health endpoint. The
// Qdrant layer implements it via its Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// checkGemini pings the Gemini models list endpoint. It is a cheap call
// that validates connectivity and the API key without generating tokens.
func checkGemini(ctx context.Context, apiKey string) error {
	url := "https://generativelanguage.googleapis.com/v1beta/models?key=" + apiKey

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 200 means the key is valid; 400/403 means it is not.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini models endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// handleHealth checks Qdrant and Gemini in parallel and reports 200 when
// both respond, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	qdrantErr := make(chan error, 1)
	geminiErr := make(chan error, 1)
	go func() { qdrantErr <- s.store.Health(ctx) }()
	go func() { geminiErr <- s.geminiCheck(ctx) }()

	services := HealthServices{Gemini: "ok", Qdrant: "ok", Server: "ok"}
	healthy := true

	if err := <-qdrantErr; err != nil {
		services.Qdrant = "error"
		healthy = false
	}
	if err := <-geminiErr; err != nil {
		services.Gemini = "error"
		healthy = false
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:       status,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Uptime:       time.Since(s.started).Seconds(),
		ResponseTime: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		Services:     services,
		Environment:  s.env,
		Model:        s.model,
	}

	s.logger.Info("health check", "status", status, "qdrant", services.Qdrant, "gemini", services.Gemini)

	writeJSON(w, statusCode, response)
}
