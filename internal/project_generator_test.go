package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/lowcoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpander struct {
	requests []ExpandRequest
	err      error
	slug     string
}

func (e *fakeExpander) Expand(ctx context.Context, req ExpandRequest) error {
	e.requests = append(e.requests, req)
	if e.err != nil {
		return e.err
	}
	root := filepath.Join(req.OutputDir, e.slug)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, "manage.py"), []byte("# skeleton\n"), 0o644)
}

type fakeExporter struct {
	inputs []*ExportInput
	empty  bool
}

func (e *fakeExporter) Export(ctx context.Context, in *ExportInput) (string, error) {
	e.inputs = append(e.inputs, in)
	if e.empty {
		return "", nil
	}
	return in.ProjectRoot, nil
}

type generatorFixture struct {
	gen      *GeneratorService
	repo     *MemorySchemaRepository
	expander *fakeExpander
	exporter *fakeExporter
	blobs    *fakeBlobs
	dirs     Directories
}

func newGeneratorFixture(t *testing.T, repo *MemorySchemaRepository) *generatorFixture {
	t.Helper()
	if repo == nil {
		repo = NewMemorySchemaRepository()
	}
	workDir := t.TempDir()
	f := &generatorFixture{
		repo:     repo,
		expander: &fakeExpander{slug: "car-rental"},
		exporter: &fakeExporter{},
		blobs:    &fakeBlobs{},
		dirs:     NewDirectories(workDir),
	}
	exporters := ModelExporters{lowcoder.ModelExporterDjango: f.exporter}
	f.gen = NewGeneratorService(repo, f.expander, exporters, f.blobs, lowcoder.GenerationConfig{WorkDir: workDir, ArchivePrefix: "deployed"})
	f.gen.newRunID = func() string { return "run-1" }
	return f
}

func generateRequest() *lowcoder.GenerateRequest {
	return &lowcoder.GenerateRequest{
		Project:  lowcoder.Project{ID: 1, Name: "Car Rental"},
		Settings: lowcoder.ProjectSettings{AdminName: "administrator", AdminPassword: "secret123"},
		User:     lowcoder.User{Username: "jdoe", Email: "jdoe@example.com"},
		CodeTemplate: lowcoder.CodeTemplate{
			ID:            5,
			Name:          "django",
			Path:          "gh:example/django",
			ModelExporter: lowcoder.ModelExporterDjango,
			Parameters: []lowcoder.CodeTemplateParameter{
				{Name: "project_slug", Value: strPtr("{{project_slug}}")},
				{Name: "use_docker", Value: strPtr("n")},
			},
		},
	}
}

func TestGeneratorService_Generate(t *testing.T) {
	ctx := context.Background()
	sf := newServiceFixture(t)
	sf.reader.order = []string{"Cars"}
	sf.reader.rows["Cars"] = [][]string{{"plate", "seats"}, {"B-1", "4"}, {"B-2", "5"}}
	imported, err := sf.svc.ImportDocument(ctx, &lowcoder.ImportRequest{ProjectID: 1, Path: "cars.xlsx"})
	require.NoError(t, err)
	tableID := imported.Tables[0].Table.ID

	f := newGeneratorFixture(t, sf.repo)
	res, err := f.gen.Generate(ctx, generateRequest())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, f.dirs.ProjectRoot("car-rental"), res.OutputRoot)
	assert.Equal(t, "deployed/car-rental-run-1.zip", res.ArchiveKey)
	assert.Equal(t, []string{"deployed/car-rental-run-1.zip"}, f.blobs.put)
	assert.True(t, hasNotice(res.Notices, lowcoder.NoticeInfo, "Project Car Rental generated"))

	require.Len(t, f.expander.requests, 1)
	req := f.expander.requests[0]
	assert.Equal(t, "gh:example/django", req.Template)
	assert.True(t, req.NoInput)
	assert.True(t, req.OverwriteIfExists)
	assert.Equal(t, f.dirs.OutputDir(), req.OutputDir)
	assert.Equal(t, map[string]any{"project_slug": "car-rental", "use_docker": "n"}, req.ExtraContext)
	_, err = os.Stat(f.dirs.ConfigFile(5))
	assert.NoError(t, err)

	require.Len(t, f.exporter.inputs, 1)
	in := f.exporter.inputs[0]
	require.Len(t, in.Schema.Tables, 1)
	assert.Equal(t, "Cars", in.Schema.Tables[0].Table.Name)
	require.Contains(t, in.Headlines, tableID)
	assert.Len(t, in.Headlines[tableID].Content, 2)
	assert.Len(t, in.Columns, 2)
}

func TestGeneratorService_MissingSchemaExportsEmptySnapshot(t *testing.T) {
	f := newGeneratorFixture(t, nil)
	_, err := f.gen.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	require.Len(t, f.exporter.inputs, 1)
	assert.Equal(t, int64(1), f.exporter.inputs[0].Schema.Schema.ProjectID)
	assert.Empty(t, f.exporter.inputs[0].Schema.Tables)
}

func TestGeneratorService_UnknownExporter(t *testing.T) {
	f := newGeneratorFixture(t, nil)
	req := generateRequest()
	req.CodeTemplate.ModelExporter = "RAILS"

	res, err := f.gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, f.expander.requests, 1)
	assert.Empty(t, f.exporter.inputs)
	assert.Empty(t, res.ArchiveKey)
	assert.True(t, hasNotice(res.Notices, lowcoder.NoticeWarning, `No ModelExporter class "RAILS" available for Code Template: django`))
}

func TestGeneratorService_ExporterWithoutOutput(t *testing.T) {
	f := newGeneratorFixture(t, nil)
	f.exporter.empty = true

	res, err := f.gen.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.Empty(t, res.OutputRoot)
	assert.Empty(t, f.blobs.put)
	assert.True(t, hasNotice(res.Notices, lowcoder.NoticeInfo, "Code Template django generated no models"))
}

func TestGeneratorService_UnmappedParameterIsReported(t *testing.T) {
	f := newGeneratorFixture(t, nil)
	req := generateRequest()
	req.CodeTemplate.Parameters = append(req.CodeTemplate.Parameters, lowcoder.CodeTemplateParameter{Name: "license", Value: strPtr("{{license}}")})

	res, err := f.gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "{{license}}", f.expander.requests[0].ExtraContext["license"])
	assert.True(t, hasNotice(res.Notices, lowcoder.NoticeWarning, "No mapping found for Code Template: django, Parameter: license Value: {{license}}"))
}

func TestGeneratorService_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid project", func(t *testing.T) {
		f := newGeneratorFixture(t, nil)
		req := generateRequest()
		req.Project.Name = "abc"
		_, err := f.gen.Generate(ctx, req)
		assert.True(t, lowcoder.IsValidation(err))
		assert.Empty(t, f.expander.requests)
	})

	t.Run("invalid settings", func(t *testing.T) {
		f := newGeneratorFixture(t, nil)
		req := generateRequest()
		req.Settings.AdminPassword = "123"
		_, err := f.gen.Generate(ctx, req)
		assert.True(t, lowcoder.IsValidation(err))
	})

	t.Run("expansion failure", func(t *testing.T) {
		f := newGeneratorFixture(t, nil)
		f.expander.err = lowcoder.NewGenerationError(lowcoder.ErrCodeTemplateExpansion, "template expansion", errors.New("exit 1"))
		_, err := f.gen.Generate(ctx, generateRequest())
		assert.True(t, lowcoder.IsGeneration(err))
		assert.Empty(t, f.exporter.inputs)
	})

	t.Run("invalid mapping", func(t *testing.T) {
		f := newGeneratorFixture(t, nil)
		f.gen.WithMappings(map[string]ParameterMapping{"x": {SourceProject, "owner"}})
		_, err := f.gen.Generate(ctx, generateRequest())
		var le *lowcoder.LowcoderError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, lowcoder.ErrCodeInvalidMapping, le.Code)
	})
}
