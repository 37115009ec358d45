package internal

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

// GeneratorService implements lowcoder.ProjectGenerator: it expands the code
// template, lets the template's exporter write the models and archives the
// result.
type GeneratorService struct {
	repo          SchemaRepository
	expander      TemplateExpander
	exporters     ModelExporters
	blobs         BlobStore
	dirs          Directories
	mappings      map[string]ParameterMapping
	archivePrefix string
	newRunID      func() string
}

var _ lowcoder.ProjectGenerator = (*GeneratorService)(nil)

func NewGeneratorService(repo SchemaRepository, expander TemplateExpander, exporters ModelExporters, blobs BlobStore, cfg lowcoder.GenerationConfig) *GeneratorService {
	return &GeneratorService{
		repo:          repo,
		expander:      expander,
		exporters:     exporters,
		blobs:         blobs,
		dirs:          NewDirectories(cfg.WorkDir),
		mappings:      DefaultParameterMappings,
		archivePrefix: cfg.ArchivePrefix,
		newRunID:      uuid.NewString,
	}
}

// WithMappings replaces the placeholder mappings, mainly for tests.
func (g *GeneratorService) WithMappings(m map[string]ParameterMapping) *GeneratorService {
	g.mappings = m
	return g
}

func (g *GeneratorService) Generate(ctx context.Context, req *lowcoder.GenerateRequest) (*lowcoder.GenerateResult, error) {
	if err := req.Project.Validate(); err != nil {
		return nil, err
	}
	if err := req.Settings.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &lowcoder.GenerateResult{RunID: g.newRunID()}
	log := zap.S().With("run_id", result.RunID, "project", req.Project.SlugName(), "template", req.CodeTemplate.Name)

	mapper, err := NewTemplateParameterMapper(&MappingContext{
		Project:      &req.Project,
		Settings:     &req.Settings,
		User:         &req.User,
		CodeTemplate: &req.CodeTemplate,
		Directories:  g.dirs,
	}, g.mappings)
	if err != nil {
		return nil, err
	}
	params := mapper.ExpandAll(req.CodeTemplate.Parameters)
	result.Notices = append(result.Notices, mapper.Notices()...)

	configFile := g.dirs.ConfigFile(req.CodeTemplate.ID)
	if err := WriteExpanderConfig(configFile, params, g.dirs); err != nil {
		return nil, lowcoder.NewGenerationError(lowcoder.ErrCodeTemplateExpansion, "write config", err)
	}

	expandStart := time.Now()
	err = g.expander.Expand(ctx, ExpandRequest{
		Template:          req.CodeTemplate.Path,
		ConfigFile:        configFile,
		OutputDir:         g.dirs.OutputDir(),
		ExtraContext:      params,
		NoInput:           true,
		OverwriteIfExists: true,
	})
	if err != nil {
		return nil, err
	}
	EmitLatency(ctx, "expand", time.Since(expandStart).Milliseconds())

	exporter, ok := g.exporters.Lookup(req.CodeTemplate.ModelExporter)
	if !ok {
		log.Warnw("no model exporter registered", "class", req.CodeTemplate.ModelExporter)
		result.Notices.Warnf("No ModelExporter class %q available for Code Template: %s",
			req.CodeTemplate.ModelExporter, req.CodeTemplate.Name)
		return result, nil
	}

	in, err := g.exportInput(ctx, req)
	if err != nil {
		return nil, err
	}

	exportStart := time.Now()
	root, err := exporter.Export(ctx, in)
	if err != nil {
		return nil, err
	}
	EmitLatency(ctx, "export", time.Since(exportStart).Milliseconds())
	if root == "" {
		result.Notices.Infof("Code Template %s generated no models", req.CodeTemplate.Name)
		return result, nil
	}
	result.OutputRoot = root

	key, err := g.archive(ctx, root, req.Project.SlugName(), result.RunID)
	if err != nil {
		return nil, err
	}
	result.ArchiveKey = key
	result.Notices.Infof("Project %s generated", req.Project.Name)

	EmitLatency(ctx, "generate", time.Since(start).Milliseconds())
	log.Infow("project generated", "output_root", root, "archive_key", key)
	return result, nil
}

// exportInput reads the schema together with the cached sheet content in
// one scope so the exporter sees a consistent view.
func (g *GeneratorService) exportInput(ctx context.Context, req *lowcoder.GenerateRequest) (*ExportInput, error) {
	in := &ExportInput{
		Project:     req.Project,
		Settings:    req.Settings,
		User:        req.User,
		DeployType:  req.DeployType,
		ProjectRoot: g.dirs.ProjectRoot(req.Project.SlugName()),
		Headlines:   map[int64]*lowcoder.Headline{},
		Columns:     map[int64]*lowcoder.Column{},
	}

	schema, err := g.repo.GetSchemaByProject(ctx, req.Project.ID)
	if lowcoder.IsNotFound(err) {
		in.Schema = &lowcoder.SchemaSnapshot{Schema: lowcoder.Schema{ProjectID: req.Project.ID}}
		return in, nil
	}
	if err != nil {
		return nil, err
	}

	err = g.repo.InSchemaScope(ctx, schema.ID, func(ctx context.Context, store SchemaStore) error {
		snapshot, err := loadSnapshot(ctx, store, schema)
		if err != nil {
			return err
		}
		in.Schema = snapshot
		for _, tm := range snapshot.Tables {
			if tm.Table.HeadlineID != nil {
				h, err := store.GetHeadline(ctx, *tm.Table.HeadlineID)
				if err != nil && !lowcoder.IsNotFound(err) {
					return err
				}
				if h != nil {
					in.Headlines[tm.Table.ID] = h
				}
			}
			for _, f := range tm.Fields {
				if f.ColumnID == nil {
					continue
				}
				c, err := store.GetColumn(ctx, *f.ColumnID)
				if err != nil && !lowcoder.IsNotFound(err) {
					return err
				}
				if c != nil {
					in.Columns[f.ID] = c
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (g *GeneratorService) archive(ctx context.Context, root, slug, runID string) (string, error) {
	var buf bytes.Buffer
	if err := ZipDirectory(&buf, root); err != nil {
		return "", lowcoder.NewGenerationError(lowcoder.ErrCodeArchiveFailed, "zip", err)
	}
	key := path.Join(g.archivePrefix, fmt.Sprintf("%s-%s.zip", slug, runID))
	if g.blobs == nil {
		return "", nil
	}
	if err := g.blobs.Put(ctx, key, &buf); err != nil {
		return "", lowcoder.NewGenerationError(lowcoder.ErrCodeArchiveFailed, "store archive", err)
	}
	return key, nil
}
