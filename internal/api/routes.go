// Package api exposes the widget's public surface as a Huma REST API.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/layers"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/panel"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/presets"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/titiler"
)

// Handler holds the REST API handlers over the panel controller.
type Handler struct {
	panel *panel.Controller
}

// NewHandler creates the API handler.
func NewHandler(p *panel.Controller) *Handler {
	return &Handler{panel: p}
}

// RegisterRoutes registers every widget route.
func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))

	huma.Get(api, "/api/v1/collections", h.GetCollections, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/collections/{id}", h.GetCollection, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/collections/{id}/items", h.GetItems, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/collections/{id}/presets", h.GetPresets, huma.OperationTags("catalog"))
	huma.Post(api, "/api/v1/search", h.Search, huma.OperationTags("catalog"))

	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/item", h.AddItemLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/mosaic", h.AddMosaicLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Patch(api, "/api/v1/layers/{id}", h.UpdateLayer, huma.OperationTags("layers"))
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{id}/zoom", h.ZoomToLayer, huma.OperationTags("layers"))

	huma.Get(api, "/api/v1/download", h.GetDownloadURL, huma.OperationTags("download"))
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer or collection ID" example:"sentinel-2-l2a"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Features []string `json:"features" doc:"Available features"`
}

type CollectionsOutput struct {
	Body struct {
		Collections []stac.Collection `json:"collections"`
	}
}

type CollectionOutput struct {
	Body stac.Collection
}

type ItemsInput struct {
	ID    string `path:"id" doc:"Collection ID"`
	Limit int    `query:"limit" default:"24" minimum:"1" maximum:"1000" doc:"Maximum number of items"`
}

type ItemsOutput struct {
	Body struct {
		Items []stac.Item `json:"items"`
	}
}

type PresetsOutput struct {
	Body struct {
		Presets []presets.Preset `json:"presets"`
		Default string           `json:"default,omitempty"`
	}
}

type SearchInput struct {
	Body stac.SearchParams
}

type SearchOutput struct {
	Body struct {
		Items    []stac.Item `json:"items"`
		Canceled bool        `json:"canceled,omitempty" doc:"True when this search was superseded by a newer one"`
	}
}

type LayerOutput struct {
	Body layers.Record
}

type LayersOutput struct {
	Body struct {
		Layers []layers.Record `json:"layers"`
	}
}

type AddItemLayerInput struct {
	Body struct {
		Collection    string                 `json:"collection" required:"true" doc:"Collection ID"`
		Item          string                 `json:"item" required:"true" doc:"Item ID"`
		Assets        []string               `json:"assets,omitempty" doc:"Explicit asset selection"`
		RenderOptions *titiler.RenderOptions `json:"renderOptions,omitempty" doc:"Explicit render parameter bundle"`
		Preset        string                 `json:"preset,omitempty" doc:"Named preset to apply"`
	}
}

type AddMosaicLayerInput struct {
	Body struct {
		Collection    string                 `json:"collection" required:"true" doc:"Collection ID"`
		Assets        []string               `json:"assets,omitempty"`
		RenderOptions *titiler.RenderOptions `json:"renderOptions,omitempty"`
		Preset        string                 `json:"preset,omitempty"`
		Search        *stac.SearchParams     `json:"search,omitempty" doc:"Spatiotemporal filter for the mosaic"`
		Register      bool                   `json:"register,omitempty" doc:"Register the search server-side instead of inlining it"`
	}
}

type UpdateLayerInput struct {
	ID   string `path:"id" doc:"Layer ID"`
	Body struct {
		Visible       *bool                  `json:"visible,omitempty"`
		Opacity       *float64               `json:"opacity,omitempty" minimum:"0" maximum:"1"`
		Assets        []string               `json:"assets,omitempty"`
		RenderOptions *titiler.RenderOptions `json:"renderOptions,omitempty"`
	}
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type DownloadInput struct {
	Collection string `query:"collection" required:"true" doc:"Collection ID"`
	Item       string `query:"item" required:"true" doc:"Item ID"`
	Asset      string `query:"asset" required:"true" doc:"Asset key"`
}

type DownloadOutput struct {
	Body struct {
		URL string `json:"url" doc:"Signed download URL"`
	}
}

// Handlers

func (h *Handler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *Handler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "pc-widget",
		Version:  "1.0.0",
		Features: []string{"stac-search", "item-tiles", "mosaic-tiles", "presets", "signed-downloads"},
	}}, nil
}

func (h *Handler) GetCollections(ctx context.Context, input *struct{}) (*CollectionsOutput, error) {
	colls, err := h.panel.LoadCatalog(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	out := &CollectionsOutput{}
	out.Body.Collections = colls
	return out, nil
}

func (h *Handler) GetCollection(ctx context.Context, input *IDInput) (*CollectionOutput, error) {
	coll, err := h.panel.SelectCollection(ctx, input.ID)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &CollectionOutput{Body: *coll}, nil
}

func (h *Handler) GetItems(ctx context.Context, input *ItemsInput) (*ItemsOutput, error) {
	items, err := h.panel.Items(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, upstreamError(err)
	}
	out := &ItemsOutput{}
	out.Body.Items = items
	return out, nil
}

func (h *Handler) GetPresets(ctx context.Context, input *IDInput) (*PresetsOutput, error) {
	out := &PresetsOutput{}
	out.Body.Presets = h.panel.Presets().ForCollection(input.ID)
	if def, ok := h.panel.Presets().Default(input.ID); ok {
		out.Body.Default = def.Name
	}
	return out, nil
}

func (h *Handler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	items, err := h.panel.Search(ctx, input.Body)
	if err != nil {
		return nil, upstreamError(err)
	}
	out := &SearchOutput{}
	out.Body.Items = items
	out.Body.Canceled = items == nil
	return out, nil
}

func (h *Handler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	recs, err := h.panel.Layers()
	if err != nil {
		return nil, layerError(err)
	}
	out := &LayersOutput{}
	out.Body.Layers = recs
	return out, nil
}

func (h *Handler) AddItemLayer(ctx context.Context, input *AddItemLayerInput) (*LayerOutput, error) {
	item, err := h.panel.SelectItem(ctx, input.Body.Collection, input.Body.Item)
	if err != nil {
		return nil, upstreamError(err)
	}
	rec, err := h.panel.AddItemLayer(item, layers.AddOptions{
		Assets:        input.Body.Assets,
		RenderOptions: input.Body.RenderOptions,
		Preset:        input.Body.Preset,
	})
	if err != nil {
		return nil, layerError(err)
	}
	return &LayerOutput{Body: *rec}, nil
}

func (h *Handler) AddMosaicLayer(ctx context.Context, input *AddMosaicLayerInput) (*LayerOutput, error) {
	coll, err := h.panel.SelectCollection(ctx, input.Body.Collection)
	if err != nil {
		return nil, upstreamError(err)
	}
	rec, err := h.panel.AddMosaicLayer(ctx, coll, layers.AddOptions{
		Assets:        input.Body.Assets,
		RenderOptions: input.Body.RenderOptions,
		Preset:        input.Body.Preset,
		Search:        input.Body.Search,
	}, input.Body.Register)
	if err != nil {
		return nil, layerError(err)
	}
	return &LayerOutput{Body: *rec}, nil
}

func (h *Handler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	rec, ok, err := h.panel.Layer(input.ID)
	if err != nil {
		return nil, layerError(err)
	}
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: rec}, nil
}

func (h *Handler) UpdateLayer(ctx context.Context, input *UpdateLayerInput) (*LayerOutput, error) {
	rec, err := h.panel.UpdateLayer(input.ID, layers.Update{
		Visible:       input.Body.Visible,
		Opacity:       input.Body.Opacity,
		Assets:        input.Body.Assets,
		RenderOptions: input.Body.RenderOptions,
	})
	if err != nil {
		return nil, layerError(err)
	}
	if rec == nil {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: *rec}, nil
}

func (h *Handler) DeleteLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.panel.RemoveLayer(input.ID); err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer removed"}}, nil
}

func (h *Handler) ZoomToLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.panel.ZoomToLayer(input.ID); err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Zoomed to layer"}}, nil
}

func (h *Handler) GetDownloadURL(ctx context.Context, input *DownloadInput) (*DownloadOutput, error) {
	item, err := h.panel.SelectItem(ctx, input.Collection, input.Item)
	if err != nil {
		return nil, upstreamError(err)
	}
	signed, err := h.panel.SignedAssetURL(ctx, item, input.Asset)
	if err != nil {
		if errors.Is(err, panel.ErrAssetNotFound) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, upstreamError(err)
	}
	out := &DownloadOutput{}
	out.Body.URL = signed
	return out, nil
}

// upstreamError maps remote-service failures onto 502, everything else
// onto 500.
func upstreamError(err error) error {
	var httpErr *stac.HTTPError
	if errors.As(err, &httpErr) {
		return huma.Error502BadGateway(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}

// layerError maps registry failures onto API errors.
func layerError(err error) error {
	if errors.Is(err, panel.ErrNotAttached) {
		return huma.Error409Conflict(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
