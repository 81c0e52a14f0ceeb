// Package server wires the widget API, the Datastar SSE streams and
// the static viewer into one HTTP handler.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/api"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/engine"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/events"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/panel"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/presets"
)

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	StacURL  string
	TilerURL string
	TokenURL string
	WebDir   string // Path to web/ directory for static files and the viewer page
	Presets  *presets.Registry
}

// Server is the widget HTTP server. It owns the panel controller and
// the map-command bridge the browser subscribes to.
type Server struct {
	config  Config
	mux     *http.ServeMux
	humaAPI huma.API
	panel   *panel.Controller
	bridge  *engine.Bridge
}

// New creates a widget server.
func New(cfg Config) *Server {
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("pc-widget API", "1.0.0")
	humaConfig.Info.Description = "Catalog browsing, search, layer management and signed downloads for an embedded MapLibre map."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	bridge := engine.NewBridge()
	ctrl := panel.New(panel.Config{
		StacURL:  cfg.StacURL,
		TilerURL: cfg.TilerURL,
		TokenURL: cfg.TokenURL,
		Presets:  cfg.Presets,
	})
	ctrl.Attach(bridge)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		panel:   ctrl,
		bridge:  bridge,
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Panel returns the widget controller, for embedding and tests.
func (s *Server) Panel() *panel.Controller {
	return s.panel
}

// Close tears down every active layer.
func (s *Server) Close() error {
	return s.panel.Close()
}

func (s *Server) routes() {
	api.NewHandler(s.panel).RegisterRoutes(s.humaAPI)

	// SSE streams for the browser: map commands and lifecycle events.
	huma.Get(s.humaAPI, "/api/v1/map/commands", s.MapCommands, huma.OperationTags("stream"))
	huma.Get(s.humaAPI, "/api/v1/widget/events", s.WidgetEvents, huma.OperationTags("stream"))

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		s.mux.HandleFunc("/viewer", s.handleViewer)
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

type emptyInput struct{}

// MapCommands streams MapLibre mutations to the browser. The viewer
// page watches the mapCommand signal and applies each command to the
// map instance.
func (s *Server) MapCommands(ctx context.Context, input *emptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			r, w := humago.Unwrap(humaCtx)
			sse := datastar.NewSSE(w, r)

			ch := s.bridge.Subscribe()
			defer s.bridge.Unsubscribe(ch)

			for {
				select {
				case <-r.Context().Done():
					return
				case cmd, ok := <-ch:
					if !ok {
						return
					}
					sse.MarshalAndPatchSignals(map[string]any{"mapCommand": cmd})
				}
			}
		},
	}, nil
}

// WidgetEvents streams panel lifecycle events to the browser.
func (s *Server) WidgetEvents(ctx context.Context, input *emptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			r, w := humago.Unwrap(humaCtx)
			sse := datastar.NewSSE(w, r)

			type event struct {
				Kind    events.Kind
				Payload any
			}
			ch := make(chan event, 64)
			subs := make([]events.Subscription, 0, len(events.Kinds))
			for _, kind := range events.Kinds {
				k := kind
				subs = append(subs, s.panel.Subscribe(k, func(payload any) {
					select {
					case ch <- event{Kind: k, Payload: payload}:
					default:
						// subscriber too slow, skip
					}
				}))
			}
			defer func() {
				for _, sub := range subs {
					s.panel.Unsubscribe(sub)
				}
			}()

			for {
				select {
				case <-r.Context().Done():
					return
				case e := <-ch:
					sse.MarshalAndPatchSignals(map[string]any{
						"widgetEvent": map[string]any{"kind": e.Kind, "payload": payloadView(e.Payload)},
					})
				}
			}
		},
	}, nil
}

// payloadView converts non-serializable payloads (errors) into plain
// strings before they hit the wire.
func payloadView(payload any) any {
	if err, ok := payload.(error); ok {
		return err.Error()
	}
	return payload
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"service":%q,"status":"running"}`, "pc-widget")
}
