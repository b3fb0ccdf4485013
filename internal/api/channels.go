package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/videomixer/internal/api/models"
	"github.com/smazurov/videomixer/internal/compositor"
	"github.com/smazurov/videomixer/internal/scene"
)

type channelPath struct {
	ChannelID string `path:"channel_id" example:"cam0" doc:"Channel identifier"`
}

// registerChannelRoutes registers all channel-related endpoints
func (s *Server) registerChannelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-channels",
		Method:      http.MethodGet,
		Path:        "/api/channels",
		Summary:     "List Channels",
		Description: "Get all attached channels in drawing order",
		Tags:        []string{"channels"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ChannelListResponse, error) {
		sources := s.mixer.Stats().Sources
		handles := s.comp.Channels()

		channels := make([]models.ChannelData, len(handles))
		for i, h := range handles {
			channels[i] = channelToAPI(h, sources[h.ID()])
		}
		return &models.ChannelListResponse{
			Body: models.ChannelListData{
				Channels: channels,
				Count:    len(channels),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "attach-channel",
		Method:        http.MethodPost,
		Path:          "/api/channels",
		Summary:       "Attach Channel",
		Description:   "Attach a new channel, optionally fed from a generated or still source",
		Tags:          []string{"channels"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 409, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.ChannelCreateRequest) (*models.ChannelResponse, error) {
		spec := input.Body.ChannelSpec
		cfg, err := spec.Config()
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid channel properties", err)
		}

		h, err := s.comp.AttachChannel(input.Body.ID, spec.ZOrder)
		if err != nil {
			return nil, mapCompositorError(err)
		}
		if _, err := s.comp.UpdateChannel(h.ID(), cfg); err != nil {
			return nil, mapCompositorError(err)
		}
		if spec.Source != "" {
			if err := s.mixer.SetSource(h.ID(), spec.Source); err != nil {
				_ = s.comp.DetachChannel(h.ID())
				return nil, mapCompositorError(err)
			}
		}

		return &models.ChannelResponse{Body: channelToAPI(h, spec.Source)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-channel",
		Method:      http.MethodGet,
		Path:        "/api/channels/{channel_id}",
		Summary:     "Get Channel",
		Description: "Get properties, input geometry and computed regions of a channel",
		Tags:        []string{"channels"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *channelPath) (*models.ChannelResponse, error) {
		h, err := s.channel(input.ChannelID)
		if err != nil {
			return nil, err
		}
		return &models.ChannelResponse{Body: channelToAPI(h, s.mixer.Stats().Sources[h.ID()])}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-channel",
		Method:      http.MethodPut,
		Path:        "/api/channels/{channel_id}",
		Summary:     "Update Channel",
		Description: "Replace the properties of a channel. Omitted optional properties fall back to their defaults.",
		Tags:        []string{"channels"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ChannelUpdateRequest) (*models.ChannelResponse, error) {
		cfg, err := input.Body.Config()
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid channel properties", err)
		}
		h, err := s.channel(input.ChannelID)
		if err != nil {
			return nil, err
		}
		if err := s.comp.SetZOrder(h.ID(), input.Body.ZOrder); err != nil {
			return nil, mapCompositorError(err)
		}
		if _, err := s.comp.UpdateChannel(h.ID(), cfg); err != nil {
			return nil, mapCompositorError(err)
		}

		source := s.mixer.Stats().Sources[h.ID()]
		if input.Body.Source != "" && input.Body.Source != source {
			if err := s.mixer.SetSource(h.ID(), input.Body.Source); err != nil {
				return nil, mapCompositorError(err)
			}
			source = input.Body.Source
		}
		return &models.ChannelResponse{Body: channelToAPI(h, source)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "detach-channel",
		Method:        http.MethodDelete,
		Path:          "/api/channels/{channel_id}",
		Summary:       "Detach Channel",
		Description:   "Stop the source of a channel and remove it from the output",
		Tags:          []string{"channels"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
		Security:      withAuth(),
	}, func(ctx context.Context, input *channelPath) (*struct{}, error) {
		s.mixer.RemoveSource(input.ChannelID)
		if err := s.comp.DetachChannel(input.ChannelID); err != nil {
			return nil, mapCompositorError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-channel-source",
		Method:      http.MethodPut,
		Path:        "/api/channels/{channel_id}/source",
		Summary:     "Set Channel Source",
		Description: "Feed a channel from a generated pattern or a still image",
		Tags:        []string{"channels"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SourceRequest) (*models.ChannelResponse, error) {
		if err := s.mixer.SetSource(input.ChannelID, input.Body.Source); err != nil {
			return nil, mapCompositorError(err)
		}
		h, err := s.channel(input.ChannelID)
		if err != nil {
			return nil, err
		}
		return &models.ChannelResponse{Body: channelToAPI(h, input.Body.Source)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "remove-channel-source",
		Method:        http.MethodDelete,
		Path:          "/api/channels/{channel_id}/source",
		Summary:       "Remove Channel Source",
		Description:   "Stop feeding a channel and drop its queued frame",
		Tags:          []string{"channels"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
		Security:      withAuth(),
	}, func(ctx context.Context, input *channelPath) (*struct{}, error) {
		h, err := s.channel(input.ChannelID)
		if err != nil {
			return nil, err
		}
		s.mixer.RemoveSource(h.ID())
		h.ClearBuffer()
		return &struct{}{}, nil
	})
}

func (s *Server) channel(id string) (*compositor.ChannelHandle, error) {
	h, ok := s.comp.Channel(id)
	if !ok {
		return nil, huma.Error404NotFound("Channel not found: " + id)
	}
	return h, nil
}

// channelToAPI converts a channel handle to API channel data
func channelToAPI(h *compositor.ChannelHandle, source string) models.ChannelData {
	data := models.ChannelData{
		ID:        h.ID(),
		Spec:      scene.SpecFromConfig(h.ZOrder(), source, h.Config()),
		HasBuffer: h.HasBuffer(),
		Rotation:  h.ResolvedRotation().String(),
		Regions:   h.Regions(),
		Uploads:   h.UploadStats(),
	}
	if src := h.Source(); src.Width > 0 && src.Height > 0 {
		data.Input = &models.InputData{
			Width:  src.Width,
			Height: src.Height,
			Format: src.Format.String(),
		}
	}
	return data
}

// mapCompositorError maps domain errors to HTTP errors
func mapCompositorError(err error) error {
	var compErr *compositor.Error
	if !errors.As(err, &compErr) {
		// source.Parse errors are plain
		return huma.Error400BadRequest(err.Error(), err)
	}
	switch compErr.Code {
	case compositor.CodeChannelNotFound:
		return huma.Error404NotFound(compErr.Message, err)
	case compositor.CodeChannelExists:
		return huma.Error409Conflict(compErr.Message, err)
	case compositor.CodeInvalidParams, compositor.CodeInvalidOutput:
		return huma.Error400BadRequest(compErr.Message, err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}
