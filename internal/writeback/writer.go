package writeback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/rdf"
)

// ResourceKey is the pseudo-predicate under which the Writer passes the
// resource URI to plugins.
const ResourceKey = "urn:semdesk:writeback:resource"

// Source looks up resource properties. *store.Model satisfies it.
type Source interface {
	Resource(ctx context.Context, resource string) (map[string][]rdf.Term, error)
}

// Result describes one writeback.
type Result struct {
	Resource string   `json:"resource"`
	Path     string   `json:"path"`
	MimeType string   `json:"mime_type"`
	Written  []string `json:"written"`
	Failed   []string `json:"failed,omitempty"`
}

// Writer dispatches resources to plugins.
type Writer struct {
	source   Source
	registry *Registry
}

// NewWriter creates a Writer over source using the plugins in registry.
func NewWriter(source Source, registry *Registry) *Writer {
	return &Writer{source: source, registry: registry}
}

// Writeback writes the properties of resource with every plugin that
// handles its mime type. Plugin failures do not stop the others; they are
// joined into the returned error.
func (w *Writer) Writeback(ctx context.Context, resource string) (Result, error) {
	res := Result{Resource: resource}

	props, err := w.source.Resource(ctx, resource)
	if err != nil {
		return res, semerrors.StoreError("failed to load resource", err)
	}
	if len(props) == 0 {
		return res, semerrors.ValidationError(fmt.Sprintf("unknown resource %s", resource), nil).
			WithSuggestion("Index the file before writing back its metadata")
	}

	url := Properties(props).First(rdf.NIEURL.Value)
	if url.IsZero() {
		return res, semerrors.ValidationError(fmt.Sprintf("resource %s has no nie:url", resource), nil)
	}
	path, err := rdf.PathFromURL(url.Value)
	if err != nil {
		return res, semerrors.ValidationError("resource is not a local file", err)
	}
	res.Path = path
	res.MimeType = Properties(props).First(rdf.NIEMimeType.Value).Value

	plugins := w.registry.For(res.MimeType)
	if len(plugins) == 0 {
		slog.Debug("writeback_no_plugin",
			slog.String("resource", resource),
			slog.String("mime_type", res.MimeType))
		return res, nil
	}

	out := make(Properties, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out[ResourceKey] = []rdf.Term{rdf.URI(resource)}

	var errs []error
	for _, p := range plugins {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.Write(ctx, path, out); err != nil {
			slog.Warn("writeback_plugin_failed",
				slog.String("plugin", p.Name()),
				slog.String("path", path),
				slog.String("error", err.Error()))
			res.Failed = append(res.Failed, p.Name())
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		res.Written = append(res.Written, p.Name())
	}

	if len(errs) > 0 {
		return res, semerrors.New(semerrors.ErrCodeWritebackFailed, "writeback failed", errors.Join(errs...)).
			WithDetail("path", path)
	}

	slog.Debug("writeback_complete",
		slog.String("resource", resource),
		slog.String("path", path),
		slog.Int("plugins", len(res.Written)))
	return res, nil
}
