package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/videomixer/internal/api/models"
	"github.com/smazurov/videomixer/internal/scene"
)

// registerLayoutRoutes registers layout export and save endpoints
func (s *Server) registerLayoutRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-layout",
		Method:      http.MethodGet,
		Path:        "/api/layout",
		Summary:     "Get Layout",
		Description: "Get the running configuration in layout file form",
		Tags:        []string{"layout"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LayoutResponse, error) {
		return &models.LayoutResponse{Body: *s.currentLayout()}, nil
	})

	if s.options.LayoutPath == "" {
		s.logger.Debug("No layout file configured, skipping layout save route")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "save-layout",
		Method:      http.MethodPost,
		Path:        "/api/layout/save",
		Summary:     "Save Layout",
		Description: "Write the running configuration to the layout file. The file watcher re-applies it, which changes nothing.",
		Tags:        []string{"layout"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SaveLayoutResponse, error) {
		l := s.currentLayout()
		if err := scene.Save(s.options.LayoutPath, l); err != nil {
			return nil, huma.Error500InternalServerError("Failed to save layout", err)
		}
		s.logger.Info("Layout saved", "path", s.options.LayoutPath, "channels", len(l.Channels))

		resp := &models.SaveLayoutResponse{}
		resp.Body.Path = s.options.LayoutPath
		resp.Body.Channels = len(l.Channels)
		return resp, nil
	})
}

// currentLayout snapshots channels, sources and background.
func (s *Server) currentLayout() *scene.Layout {
	sources := s.mixer.Stats().Sources

	l := scene.DefaultLayout()
	if s.options.Output.Width > 0 {
		l.Output = s.options.Output
	}
	l.Output.Background = s.comp.BackgroundColor()
	for _, h := range s.comp.Channels() {
		l.Channels[h.ID()] = scene.SpecFromConfig(h.ZOrder(), sources[h.ID()], h.Config())
	}
	return l
}
