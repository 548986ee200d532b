// Package config loads the optional HCL configuration file shared by the
// command line and the HTTP service.
//
// A file holds at most one server block and any number of named presets:
//
//	server {
//	  addr          = "127.0.0.1:8000"
//	  max_upload_mb = 32
//	  workers       = 0
//	}
//
//	preset "fine" {
//	  neighbors = "222202222"
//	  mult      = 0.75
//	  gray      = true
//	}
//
// Every attribute is optional. Unset preset attributes take the values of
// [filters.DefaultConfig].
package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/soypat/engrave/filters"
	"github.com/soypat/engrave/kernel"
)

const (
	DefaultAddr        = "127.0.0.1:8000"
	DefaultMaxUploadMB = 32
)

// ErrUnknownPreset is returned by [File.Preset] for names not defined in the file.
var ErrUnknownPreset = errors.New("unknown preset")

// Server configures the HTTP service.
type Server struct {
	Addr        string
	MaxUploadMB int
	// Workers bounds concurrent row bands per request. Zero uses GOMAXPROCS.
	Workers int
}

// MaxUploadBytes returns the request body limit in bytes.
func (s Server) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// File is a decoded configuration file.
type File struct {
	Server  Server
	Presets map[string]filters.Config
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Server:  Server{Addr: DefaultAddr, MaxUploadMB: DefaultMaxUploadMB},
		Presets: map[string]filters.Config{},
	}
}

// Preset returns the filter configuration stored under name.
func (f *File) Preset(name string) (filters.Config, error) {
	cfg, ok := f.Presets[name]
	if !ok {
		return filters.Config{}, fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	return cfg, nil
}

type hclFile struct {
	Servers []*hclServer `hcl:"server,block"`
	Presets []*hclPreset `hcl:"preset,block"`
}

type hclServer struct {
	Addr        *string `hcl:"addr,optional"`
	MaxUploadMB *int    `hcl:"max_upload_mb,optional"`
	Workers     *int    `hcl:"workers,optional"`
}

type hclPreset struct {
	Name      string   `hcl:"name,label"`
	Neighbors *string  `hcl:"neighbors,optional"`
	Add       *float64 `hcl:"add,optional"`
	Mult      *float64 `hcl:"mult,optional"`
	Invert    *bool    `hcl:"invert,optional"`
	Gray      *bool    `hcl:"gray,optional"`
}

// Load parses the HCL file at path.
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(f.Body, path)
}

// Parse decodes HCL source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}
	return decode(f.Body, filename)
}

func decode(body hcl.Body, filename string) (*File, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}

	file := Default()
	if len(parsed.Servers) > 1 {
		return nil, fmt.Errorf("%s: only one \"server\" block is allowed", filename)
	}
	if len(parsed.Servers) == 1 {
		s := parsed.Servers[0]
		if s.Addr != nil {
			file.Server.Addr = *s.Addr
		}
		if s.MaxUploadMB != nil {
			if *s.MaxUploadMB <= 0 {
				return nil, fmt.Errorf("%s: max_upload_mb must be positive, got %d", filename, *s.MaxUploadMB)
			}
			file.Server.MaxUploadMB = *s.MaxUploadMB
		}
		if s.Workers != nil {
			if *s.Workers < 0 {
				return nil, fmt.Errorf("%s: workers must not be negative, got %d", filename, *s.Workers)
			}
			file.Server.Workers = *s.Workers
		}
	}

	for _, p := range parsed.Presets {
		if _, dup := file.Presets[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate preset %q", filename, p.Name)
		}
		cfg, err := p.config()
		if err != nil {
			return nil, fmt.Errorf("%s: preset %q: %w", filename, p.Name, err)
		}
		file.Presets[p.Name] = cfg
	}
	return file, nil
}

func (p *hclPreset) config() (filters.Config, error) {
	cfg := filters.DefaultConfig()
	if p.Neighbors != nil {
		n, err := kernel.Parse(*p.Neighbors)
		if err != nil {
			return cfg, err
		}
		cfg.Neighbors = n
	}
	if p.Add != nil {
		cfg.Add = *p.Add
	}
	if p.Mult != nil {
		cfg.Mult = *p.Mult
	}
	if p.Invert != nil {
		cfg.Invert = *p.Invert
	}
	if p.Gray != nil {
		cfg.Gray = *p.Gray
	}
	return cfg, nil
}
