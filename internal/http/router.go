package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Rooms       *RoomHandler
	Allocations *AllocationHandler
	Timeline    *TimelineHandler
	Health      *HealthHandler
	// Middleware wraps every route.
	Middleware []Middleware
	// WriteMiddleware wraps only the routes that change data.
	WriteMiddleware []Middleware
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Health.Check(w, r)
		})
	}

	if cfg.Rooms != nil {
		mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Rooms.List(w, r)
		})
	}

	if cfg.Allocations != nil {
		update := chain(http.HandlerFunc(cfg.Allocations.Update), cfg.WriteMiddleware)

		mux.HandleFunc("/allocations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Allocations.List(w, r)
		})
		mux.HandleFunc("/allocations/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/allocations/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithAllocationID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Allocations.Get(w, r)
			case http.MethodPut:
				update.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		})
	}

	if cfg.Timeline != nil {
		mux.HandleFunc("/timeline/resolve", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Timeline.Resolve(w, r)
		})
		mux.HandleFunc("/timeline/capacity", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Timeline.Capacity(w, r)
		})
	}

	return chain(mux, cfg.Middleware)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
