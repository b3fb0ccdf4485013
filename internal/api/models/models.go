// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/layout"
	"github.com/smazurov/videomixer/internal/metrics"
	"github.com/smazurov/videomixer/internal/mixer"
	"github.com/smazurov/videomixer/internal/scene"
	"github.com/smazurov/videomixer/internal/upload"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Channel models
type InputData struct {
	Width  int    `json:"width" example:"1920" doc:"Negotiated input width"`
	Height int    `json:"height" example:"1080" doc:"Negotiated input height"`
	Format string `json:"format" example:"NV12" doc:"Negotiated input pixel format"`
}

type ChannelData struct {
	ID        string            `json:"id" example:"cam0" doc:"Channel identifier"`
	Spec      scene.ChannelSpec `json:"spec" doc:"Channel properties as stored in the layout file"`
	HasBuffer bool              `json:"has_buffer" doc:"Whether a frame is queued for the next output frame"`
	Input     *InputData        `json:"input,omitempty" doc:"Input geometry, once known"`
	Rotation  string            `json:"rotation" example:"90r" doc:"Effective rotation after resolving auto rotation"`
	Regions   layout.Regions    `json:"regions" doc:"Regions from the last recompute"`
	Uploads   upload.Stats      `json:"uploads" doc:"How queued frames reached engine memory"`
}

type ChannelListData struct {
	Channels []ChannelData `json:"channels" doc:"Channels in drawing order"`
	Count    int           `json:"count" example:"2" doc:"Number of channels"`
}

type ChannelListResponse struct {
	Body ChannelListData
}

type ChannelResponse struct {
	Body ChannelData
}

type ChannelCreateData struct {
	ID string `json:"id" pattern:"^[a-zA-Z0-9_-]+$" minLength:"1" maxLength:"50" example:"cam0" doc:"Channel identifier (alphanumeric, dashes, underscores only)"`
	scene.ChannelSpec
}

type ChannelCreateRequest struct {
	Body ChannelCreateData
}

type ChannelUpdateRequest struct {
	ChannelID string `path:"channel_id" example:"cam0" doc:"Channel identifier"`
	Body      scene.ChannelSpec
}

type SourceRequest struct {
	ChannelID string `path:"channel_id" example:"cam0" doc:"Channel identifier"`
	Body      struct {
		Source string `json:"source" minLength:"1" example:"pattern:bars@1280x720" doc:"Source description (pattern:<name>[@WxH] or image:<path>)"`
	}
}

// Output models
type OutputData struct {
	Configured   bool                      `json:"configured" doc:"Whether the output geometry is set"`
	Frame        blit.SurfaceDesc          `json:"frame" doc:"Output frame layout including aligned strides"`
	Backend      string                    `json:"backend" example:"software" doc:"Blit engine in use"`
	Capabilities blit.HardwareCapabilities `json:"capabilities" doc:"Blit engine capabilities"`
}

type OutputResponse struct {
	Body OutputData
}

type BackgroundData struct {
	Color uint32 `json:"color" maximum:"16777215" example:"2105376" doc:"Background color as 0xRRGGBB"`
	Hex   string `json:"hex,omitempty" example:"#202020" doc:"Background color in CSS notation"`
}

type BackgroundRequest struct {
	Body BackgroundData
}

type BackgroundResponse struct {
	Body BackgroundData
}

// Stats models
type StatsData struct {
	Session    mixer.SessionStats `json:"session" doc:"Frame loop session"`
	Compositor metrics.FrameStats `json:"compositor" doc:"Compositor counters"`
}

type StatsResponse struct {
	Body StatsData
}

type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// Layout models
type LayoutResponse struct {
	Body scene.Layout
}

type SaveLayoutResponse struct {
	Body struct {
		Path     string `json:"path" example:"layout.toml" doc:"File the layout was written to"`
		Channels int    `json:"channels" example:"2" doc:"Number of channels saved"`
	}
}

// Logging models
type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Effective level per module"`
	}
}

type LogLevelRequest struct {
	Module string `path:"module" example:"compositor" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}
