package writeback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/semdesk/internal/rdf"
)

// SidecarSuffix is appended to a file's name to form its sidecar path.
const SidecarSuffix = ".semdesk.yaml"

// SidecarPlugin writes properties to a YAML file beside the original. It
// accepts every mime type.
type SidecarPlugin struct {
	// Skip lists predicates left out of the sidecar.
	Skip []string

	now func() time.Time
}

// NewSidecarPlugin creates a sidecar writer that leaves out extracted text.
func NewSidecarPlugin() *SidecarPlugin {
	return &SidecarPlugin{
		Skip: []string{rdf.NIEPlainTextContent.Value},
		now:  time.Now,
	}
}

// Sidecar is the document written next to a file.
type Sidecar struct {
	Resource   string              `yaml:"resource"`
	Source     string              `yaml:"source"`
	Written    time.Time           `yaml:"written"`
	Properties map[string][]string `yaml:"properties"`
}

// SidecarPath returns the sidecar location for path.
func SidecarPath(path string) string {
	return path + SidecarSuffix
}

// Name implements Plugin.
func (p *SidecarPlugin) Name() string { return "sidecar" }

// CanWrite implements Plugin.
func (p *SidecarPlugin) CanWrite(string) bool { return true }

// Write implements Plugin. The sidecar is replaced atomically.
func (p *SidecarPlugin) Write(ctx context.Context, path string, props Properties) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := Sidecar{
		Resource:   props.First(ResourceKey).Value,
		Source:     filepath.Base(path),
		Written:    p.clock().UTC().Truncate(time.Second),
		Properties: make(map[string][]string),
	}
	for pred, vals := range props {
		if pred == ResourceKey || p.skipped(pred) {
			continue
		}
		key := rdf.Compact(pred)
		for _, v := range vals {
			doc.Properties[key] = append(doc.Properties[key], v.Value)
		}
		sort.Strings(doc.Properties[key])
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}

	target := SidecarPath(path)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".semdesk-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create sidecar: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to replace sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads the sidecar written for path.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		return nil, err
	}
	var doc Sidecar
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar: %w", err)
	}
	return &doc, nil
}

func (p *SidecarPlugin) skipped(pred string) bool {
	for _, s := range p.Skip {
		if s == pred {
			return true
		}
	}
	return false
}

func (p *SidecarPlugin) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}
