package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/videomixer/internal/api/models"
	"github.com/smazurov/videomixer/internal/metrics"
	"github.com/smazurov/videomixer/internal/mixer"
)

// registerOutputRoutes registers output, background, stats and snapshot endpoints
func (s *Server) registerOutputRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-output",
		Method:      http.MethodGet,
		Path:        "/api/output",
		Summary:     "Get Output",
		Description: "Get the output frame layout and the capabilities of the blit engine",
		Tags:        []string{"output"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.OutputResponse, error) {
		desc, ok := s.comp.Output()
		return &models.OutputResponse{
			Body: models.OutputData{
				Configured:   ok,
				Frame:        desc,
				Backend:      s.comp.BackendName(),
				Capabilities: s.comp.Capabilities(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-background",
		Method:      http.MethodGet,
		Path:        "/api/background",
		Summary:     "Get Background",
		Description: "Get the color painted where no channel covers the output",
		Tags:        []string{"output"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.BackgroundResponse, error) {
		return &models.BackgroundResponse{Body: backgroundData(s.comp.BackgroundColor())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-background",
		Method:      http.MethodPut,
		Path:        "/api/background",
		Summary:     "Set Background",
		Description: "Set the background color as 0xRRGGBB. Takes effect on the next frame.",
		Tags:        []string{"output"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.BackgroundRequest) (*models.BackgroundResponse, error) {
		s.comp.SetBackgroundColor(input.Body.Color)
		return &models.BackgroundResponse{Body: backgroundData(s.comp.BackgroundColor())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Get Stats",
		Description: "Get frame loop state and compositor counters",
		Tags:        []string{"output"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StatsResponse, error) {
		return &models.StatsResponse{
			Body: models.StatsData{
				Session:    s.mixer.Stats(),
				Compositor: metrics.GetFrameStats(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/snapshot",
		Summary:     "Output Snapshot",
		Description: "Get the last successfully composited output frame as PNG",
		Tags:        []string{"output"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SnapshotResponse, error) {
		var buf bytes.Buffer
		if err := s.mixer.WriteSnapshot(&buf); err != nil {
			if errors.Is(err, mixer.ErrNoFrame) {
				return nil, huma.Error503ServiceUnavailable("No frame produced yet")
			}
			return nil, huma.Error500InternalServerError("Failed to encode snapshot", err)
		}
		return &models.SnapshotResponse{
			ContentType:  "image/png",
			CacheControl: "no-store",
			Body:         buf.Bytes(),
		}, nil
	})
}

func backgroundData(rgb uint32) models.BackgroundData {
	return models.BackgroundData{
		Color: rgb,
		Hex:   fmt.Sprintf("#%06x", rgb),
	}
}
