package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigin   string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// DefaultCORSConfig returns permissive CORS config for internal tools
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:   "*",
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        86400,
	}
}

// headers pre-computes the header values for config.
func (config CORSConfig) headers() map[string]string {
	h := map[string]string{
		"Access-Control-Allow-Origin":  config.AllowOrigin,
		"Access-Control-Allow-Methods": strings.Join(config.AllowMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(config.AllowHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(config.MaxAge),
	}
	if len(config.ExposeHeaders) > 0 {
		h["Access-Control-Expose-Headers"] = strings.Join(config.ExposeHeaders, ", ")
	}
	return h
}

// NewCORSMiddleware creates CORS middleware with the given configuration
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	headers := config.headers()

	return func(ctx huma.Context, next func(huma.Context)) {
		for name, value := range headers {
			ctx.SetHeader(name, value)
		}

		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler adds a CORS preflight handler to the mux for OPTIONS requests
// This is needed because Huma middleware doesn't intercept OPTIONS before routing
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	headers := config.headers()

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		for name, value := range headers {
			w.Header().Set(name, value)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
