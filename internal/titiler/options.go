// Package titiler builds tile request URLs for a dynamic tiling API
// and proxies its metadata endpoints.
package titiler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// AssetBandIndex selects specific bands of one asset, serialized as a
// repeated "asset|1,2,3" query parameter.
type AssetBandIndex struct {
	Asset string `json:"asset" yaml:"asset"`
	Bands []int  `json:"bands" yaml:"bands"`
}

// RenderOptions is the parameter bundle sent to the tiling service.
// Assets and Expression are mutually exclusive; callers pick one, the
// encoder serializes whatever is present.
type RenderOptions struct {
	Assets       []string         `json:"assets,omitempty" yaml:"assets,omitempty"`
	Expression   string           `json:"expression,omitempty" yaml:"expression,omitempty"`
	Rescale      []string         `json:"rescale,omitempty" yaml:"rescale,omitempty"`
	ColormapName string           `json:"colormap_name,omitempty" yaml:"colormap_name,omitempty"`
	Colormap     map[string]any   `json:"colormap,omitempty" yaml:"colormap,omitempty"`
	AssetBidx    []AssetBandIndex `json:"asset_bidx,omitempty" yaml:"asset_bidx,omitempty"`
	Nodata       *float64         `json:"nodata,omitempty" yaml:"nodata,omitempty"`
	Unscale      *bool            `json:"unscale,omitempty" yaml:"unscale,omitempty"`
	Resampling   string           `json:"resampling,omitempty" yaml:"resampling,omitempty"`
	ColorFormula string           `json:"color_formula,omitempty" yaml:"color_formula,omitempty"`
	Format       string           `json:"format,omitempty" yaml:"format,omitempty"`
}

// Query serializes the bundle into query parameters. List-valued
// assets become repeated parameters in list order; the colormap map is
// JSON-encoded into a single value; scalars are stringified.
func (o RenderOptions) Query() url.Values {
	v := url.Values{}
	for _, a := range o.Assets {
		v.Add("assets", a)
	}
	if o.Expression != "" {
		v.Set("expression", o.Expression)
	}
	for _, r := range o.Rescale {
		v.Add("rescale", r)
	}
	if o.ColormapName != "" {
		v.Set("colormap_name", o.ColormapName)
	}
	if len(o.Colormap) > 0 {
		data, err := json.Marshal(o.Colormap)
		if err == nil {
			v.Set("colormap", string(data))
		}
	}
	for _, abi := range o.AssetBidx {
		v.Add("asset_bidx", abi.Asset+"|"+joinInts(abi.Bands))
	}
	if o.Nodata != nil {
		v.Set("nodata", strconv.FormatFloat(*o.Nodata, 'f', -1, 64))
	}
	if o.Unscale != nil {
		v.Set("unscale", strconv.FormatBool(*o.Unscale))
	}
	if o.Resampling != "" {
		v.Set("resampling", o.Resampling)
	}
	if o.ColorFormula != "" {
		v.Set("color_formula", o.ColorFormula)
	}
	if o.Format != "" {
		v.Set("format", o.Format)
	}
	return v
}

// Encode returns the canonical query string for the bundle.
func (o RenderOptions) Encode() string {
	return o.Query().Encode()
}

// Merge overlays the non-zero fields of other onto a copy of o and
// returns it. Setting Expression on other clears Assets and vice
// versa, keeping the two mutually exclusive after a merge.
func (o RenderOptions) Merge(other RenderOptions) RenderOptions {
	out := o
	if other.Assets != nil {
		out.Assets = other.Assets
		out.Expression = ""
	}
	if other.Expression != "" {
		out.Expression = other.Expression
		out.Assets = nil
	}
	if other.Rescale != nil {
		out.Rescale = other.Rescale
	}
	if other.ColormapName != "" {
		out.ColormapName = other.ColormapName
	}
	if other.Colormap != nil {
		out.Colormap = other.Colormap
	}
	if other.AssetBidx != nil {
		out.AssetBidx = other.AssetBidx
	}
	if other.Nodata != nil {
		out.Nodata = other.Nodata
	}
	if other.Unscale != nil {
		out.Unscale = other.Unscale
	}
	if other.Resampling != "" {
		out.Resampling = other.Resampling
	}
	if other.ColorFormula != "" {
		out.ColorFormula = other.ColorFormula
	}
	if other.Format != "" {
		out.Format = other.Format
	}
	return out
}

// FormatBbox renders a bbox as "west, south, east, north" with two
// decimal places, the display format used by the panel.
func FormatBbox(bbox []float64) string {
	parts := make([]string, len(bbox))
	for i, f := range bbox {
		parts[i] = fmt.Sprintf("%.2f", f)
	}
	return strings.Join(parts, ", ")
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
