package internal

import (
	"context"

	"github.com/lychee-technology/lowcoder"
)

// ExportInput is everything a backend reads. ProjectRoot is the expanded
// template skeleton the backend writes into.
type ExportInput struct {
	Project     lowcoder.Project
	Settings    lowcoder.ProjectSettings
	User        lowcoder.User
	DeployType  lowcoder.DeployType
	ProjectRoot string
	Schema      *lowcoder.SchemaSnapshot
	// Headlines holds the cached sheet content keyed by table id.
	Headlines map[int64]*lowcoder.Headline
	// Columns holds the originating source column keyed by field id.
	Columns map[int64]*lowcoder.Column
}

// ModelExporter produces model, admin and fixture artifacts for one target.
// An empty path means the backend generated nothing.
type ModelExporter interface {
	Export(ctx context.Context, in *ExportInput) (string, error)
}

// ModelExporters dispatches on the code template's exporter class.
type ModelExporters map[lowcoder.ModelExporterClass]ModelExporter

// Lookup returns the backend for class.
func (m ModelExporters) Lookup(class lowcoder.ModelExporterClass) (ModelExporter, bool) {
	e, ok := m[class]
	return e, ok
}

// JPAExporter is registered for Java templates and generates nothing yet.
type JPAExporter struct{}

func (JPAExporter) Export(context.Context, *ExportInput) (string, error) {
	return "", nil
}
