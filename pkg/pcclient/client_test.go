//go:build integration

// Integration test for the client SDK.
// Requires a running server: go run ./cmd/pcwidget
//
// Run: go test -tags=integration ./pkg/pcclient/
package pcclient_test

import (
	"context"
	"os"
	"testing"

	"github.com/opengeos/maplibre-gl-planetary-computer/pkg/pcclient"
)

func baseURL() string {
	if u := os.Getenv("PCWIDGET_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8087"
}

func client() *pcclient.Client {
	return pcclient.New(baseURL())
}

func TestHealth(t *testing.T) {
	h, err := client().GetHealth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" {
		t.Fatalf("status=%q, want ok", h.Status)
	}
}

func TestLayerLifecycle(t *testing.T) {
	c := client()
	ctx := context.Background()

	layer, err := c.AddItemLayer(ctx, pcclient.AddItemLayerRequest{
		Collection: "sentinel-2-l2a",
		Item:       "S2B_MSIL2A_20240101T000000_R001_T01ABC_20240101T010101",
	})
	if err != nil {
		t.Skip("add:", err) // needs reachable upstream catalog
	}

	layersList, err := c.ListLayers(ctx)
	if err != nil {
		t.Fatal("list:", err)
	}
	found := false
	for _, l := range layersList {
		if l.ID == layer.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("layer %s missing from list", layer.ID)
	}

	if err := c.RemoveLayer(ctx, layer.ID); err != nil {
		t.Fatal("remove:", err)
	}
}
