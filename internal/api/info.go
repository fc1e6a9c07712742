package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir   string
	historyOK bool
}

func NewInfoHandler(dataDir string, historyOK bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, historyOK: historyOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	History  bool     `json:"history" doc:"Whether navigation history is available"`
	MaxTiles int      `json:"max_tiles" doc:"Largest grid one viewport may draw"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"grid", "quadkey", "mvt"}
	if h.historyOK {
		features = append(features, "history")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "tilegrid",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		History:  h.historyOK,
		MaxTiles: MaxTiles,
		Features: features,
	}}, nil
}
