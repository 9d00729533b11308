package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// pprofPrefix is the route prefix the profiling middleware claims.
const pprofPrefix = "/debug/pprof"

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether pprof endpoints are exposed. Profiles leak
	// runtime internals, so this must stay off outside development.
	Enabled bool

	// Environment backs the production guard below.
	Environment string
}

// blockedEnvironment reports whether env names a production deployment,
// where pprof must never be reachable regardless of configuration.
func blockedEnvironment(env string) bool {
	return env == "production" || env == "prod"
}

// Profiling returns middleware that serves the net/http/pprof handlers
// under /debug/pprof/ and forwards everything else to next. When disabled,
// or when the environment guard trips, it is a transparent pass-through.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}

		if blockedEnvironment(config.Environment) {
			slog.Error("refusing to expose pprof in a production environment",
				"environment", config.Environment)
			return next
		}

		slog.Warn("pprof endpoints enabled",
			"environment", config.Environment,
			"prefix", pprofPrefix)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, pprofPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			switch r.URL.Path {
			case pprofPrefix + "/cmdline":
				pprof.Cmdline(w, r)
			case pprofPrefix + "/profile":
				pprof.Profile(w, r)
			case pprofPrefix + "/symbol":
				pprof.Symbol(w, r)
			case pprofPrefix + "/trace":
				pprof.Trace(w, r)
			default:
				// Index also serves the named runtime profiles
				// (heap, goroutine, block, mutex, allocs).
				pprof.Index(w, r)
			}
		})
	}
}

// profilingStatusResponse is the body served by ProfilingStatus.
type profilingStatusResponse struct {
	ProfilingEnabled bool   `json:"profiling_enabled"`
	Environment      string `json:"environment"`
	Status           string `json:"status"`
	Prefix           string `json:"prefix"`
}

// ProfilingStatus returns a handler reporting whether profiling is active,
// so operators can confirm the guard without probing pprof itself.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "disabled"
		if config.Enabled && !blockedEnvironment(config.Environment) {
			status = "enabled"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(profilingStatusResponse{
			ProfilingEnabled: config.Enabled,
			Environment:      config.Environment,
			Status:           status,
			Prefix:           pprofPrefix,
		}); err != nil {
			slog.Error("failed to write profiling status response", "error", err)
		}
	}
}
