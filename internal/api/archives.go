package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/tilegrid/internal/service"
)

// ArchivesHandler lists and generates grid PMTiles archives.
type ArchivesHandler struct {
	archives *service.ArchiveService
}

func NewArchivesHandler(archives *service.ArchiveService) *ArchivesHandler {
	return &ArchivesHandler{archives: archives}
}

func (h *ArchivesHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/archives", h.ListArchives, huma.OperationTags("archives"))
	huma.Post(api, "/api/v1/archives", h.CreateArchive, huma.OperationTags("archives"))
}

type ArchiveListOutput struct {
	Body struct {
		Archives []service.ArchiveFile `json:"archives"`
	}
}

type CreateArchiveInput struct {
	Body service.GenerateOptions
}

type CreateArchiveOutput struct {
	Body struct {
		Archive   service.ArchiveFile `json:"archive"`
		Tiles     int                 `json:"tiles" doc:"Tiles written"`
		TileBytes int64               `json:"tileBytes" doc:"Compressed tile data, before directories"`
	}
}

func (h *ArchivesHandler) ListArchives(ctx context.Context, input *struct{}) (*ArchiveListOutput, error) {
	files, err := h.archives.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list archives", err)
	}
	out := &ArchiveListOutput{}
	out.Body.Archives = files
	return out, nil
}

func (h *ArchivesHandler) CreateArchive(ctx context.Context, input *CreateArchiveInput) (*CreateArchiveOutput, error) {
	if err := service.ValidateName(input.Body.Name); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	if input.Body.MinZoom > input.Body.MaxZoom {
		return nil, huma.Error422UnprocessableEntity("minZoom above maxZoom")
	}
	if input.Body.West > input.Body.East || input.Body.South > input.Body.North {
		return nil, huma.Error422UnprocessableEntity("bounds min above max")
	}

	file, stats, err := h.archives.Generate(input.Body, nil)
	if err != nil {
		if errors.Is(err, service.ErrArchiveTooLarge) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, huma.Error500InternalServerError("Failed to generate archive", err)
	}

	out := &CreateArchiveOutput{}
	out.Body.Archive = file
	out.Body.Tiles = stats.Tiles
	out.Body.TileBytes = stats.Bytes
	return out, nil
}
