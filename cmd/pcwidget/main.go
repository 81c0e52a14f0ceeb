package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/presets"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/server"
)

// Options defines all CLI flags and env vars for the widget server.
// Flags: --host, --port, --stac-url, --tiler-url, --token-url,
// --web-dir, --presets-file
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8087"`
	StacURL     string `doc:"Catalog search API root" default:"https://planetarycomputer.microsoft.com/api/stac/v1"`
	TilerURL    string `doc:"Tile rendering API root" default:"https://planetarycomputer.microsoft.com/api/data/v1"`
	TokenURL    string `doc:"Token issuing API root" default:"https://planetarycomputer.microsoft.com/api/sas/v1/token"`
	WebDir      string `doc:"Path to web/ directory" default:"web"`
	PresetsFile string `doc:"YAML file overriding the built-in visualization presets"`
}

func newServer(opts *Options) *server.Server {
	reg := presets.Builtin()
	if opts.PresetsFile != "" {
		loaded, err := presets.LoadFile(opts.PresetsFile)
		if err != nil {
			log.Fatalf("presets: %v", err)
		}
		reg = loaded
	}

	return server.New(server.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		StacURL:  opts.StacURL,
		TilerURL: opts.TilerURL,
		TokenURL: opts.TokenURL,
		WebDir:   opts.WebDir,
		Presets:  reg,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("pc-widget server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Catalog: %s\n", opts.StacURL)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "pcwidget"
	cli.Root().Short = "Map widget backend for browsing Earth-observation catalogs"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// presets subcommand: dump the effective preset table
	presetsCmd := &cobra.Command{
		Use:   "presets [collection]",
		Short: "Print visualization presets (all collections or one)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			reg := presets.Builtin()
			if opts.PresetsFile != "" {
				loaded, err := presets.LoadFile(opts.PresetsFile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error loading presets: %v\n", err)
					os.Exit(1)
				}
				reg = loaded
			}

			if len(args) > 0 {
				out, err := yaml.Marshal(reg.ForCollection(args[0]))
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error marshaling presets: %v\n", err)
					os.Exit(1)
				}
				fmt.Println(string(out))
				return
			}

			fmt.Println("Use `pcwidget presets <collection>` to inspect one collection.")
		}),
	}
	cli.Root().AddCommand(presetsCmd)

	cli.Run()
}
