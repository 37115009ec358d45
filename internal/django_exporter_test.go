package internal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lychee-technology/lowcoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func int64Ptr(n int64) *int64 { return &n }

func TestFieldKwargs(t *testing.T) {
	tests := []struct {
		name  string
		field lowcoder.Field
		want  []string
	}{
		{
			name:  "char with flags",
			field: lowcoder.Field{Datatype: lowcoder.DatatypeChar, MaxLength: intPtr(60), Null: true, Blank: true, IsUnique: true},
			want:  []string{"max_length=60", "null=True", "blank=True", "unique=True"},
		},
		{
			name:  "decimal with default",
			field: lowcoder.Field{Datatype: lowcoder.DatatypeDecimal, MaxDigits: intPtr(4), DecimalPlaces: intPtr(2), DefaultValue: strPtr("3,5")},
			want:  []string{"max_digits=4", "decimal_places=2", "default=3.5"},
		},
		{
			name:  "choices need more than one entry",
			field: lowcoder.Field{Datatype: lowcoder.DatatypeInteger, Choices: lowcoder.Choices{{Key: 1, Label: "only"}}},
			want:  nil,
		},
		{
			name: "choices and help text",
			field: lowcoder.Field{Datatype: lowcoder.DatatypeInteger, UseIndex: true, Description: "it's the state",
				Choices: lowcoder.Choices{{Key: 1, Label: "open"}, {Key: 2, Label: "closed"}}},
			want: []string{"db_index=True", "choices=[(1, 'open'), (2, 'closed')]", `help_text='it\'s the state'`},
		},
		{
			name:  "integer default",
			field: lowcoder.Field{Datatype: lowcoder.DatatypeInteger, DefaultValue: strPtr(" 42 ")},
			want:  []string{"default=42"},
		},
		{
			name:  "boolean default",
			field: lowcoder.Field{Datatype: lowcoder.DatatypeBoolean, DefaultValue: strPtr("true")},
			want:  []string{"default=True"},
		},
		{
			name:  "unparsable default stays a string",
			field: lowcoder.Field{Datatype: lowcoder.DatatypeInteger, DefaultValue: strPtr("n/a")},
			want:  []string{"default='n/a'"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fieldKwargs(tt.field))
		})
	}
}

func TestBuildDjangoModel_Identifiers(t *testing.T) {
	schema := &lowcoder.SchemaSnapshot{Tables: []lowcoder.TableModel{
		{Table: lowcoder.Table{ID: 3, Name: "orders", Index: 3}},
		{Table: lowcoder.Table{ID: 1, Name: "employee data", Index: 1}, Fields: []lowcoder.Field{
			{ID: 10, Name: "id", Index: 1},
			{ID: 11, Name: "First Name", Index: 2},
			{ID: 12, Name: "first_name", Index: 3},
			{ID: 13, Name: "1st shift", Index: 4},
			{ID: 14, Name: "hidden", Index: 5, Exclude: true},
			{ID: 15, Name: "pk", Index: 6},
		}},
		{Table: lowcoder.Table{ID: 2, Name: "Orders", Index: 2}},
		{Table: lowcoder.Table{ID: 4, Name: "2024 sales", Index: 4}},
		{Table: lowcoder.Table{ID: 5, Name: "skipped", Index: 5, Exclude: true}},
	}}

	m := buildDjangoModel(schema)
	classes := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		classes = append(classes, t.ClassName)
	}
	assert.Equal(t, []string{"EmployeeData", "Orders", "Orders2", "T2024Sales"}, classes)

	attrs := make([]string, 0)
	for _, f := range m.Tables[0].Fields {
		attrs = append(attrs, f.Attr)
	}
	assert.Equal(t, []string{"id_value", "first_name", "first_name_2", "f_1st_shift", "pk_value"}, attrs)
	assert.Equal(t, 6, m.Tables[0].FieldCount)
}

func exportFixture() *ExportInput {
	customers := lowcoder.TableModel{
		Table: lowcoder.Table{ID: 1, Name: "Customers", Index: 1, IsMainEntity: true},
		Fields: []lowcoder.Field{
			{ID: 11, TableID: 1, Name: "name", Datatype: lowcoder.DatatypeChar, MaxLength: intPtr(30), IsUnique: true, Index: 1, ShowInList: true, ShowInDetail: true},
			{ID: 12, TableID: 1, Name: "status", Datatype: lowcoder.DatatypeInteger, Index: 2, ShowInList: true, ShowInDetail: true,
				Choices: lowcoder.Choices{{Key: 1, Label: "active"}, {Key: 2, Label: "inactive"}}},
		},
	}
	orders := lowcoder.TableModel{
		Table: lowcoder.Table{ID: 2, Name: "Orders", Index: 2},
		Fields: []lowcoder.Field{
			{ID: 21, TableID: 2, Name: "customer", Datatype: lowcoder.DatatypeInteger, ForeignKeyTableID: int64Ptr(1), Index: 1, ShowInList: true, ShowInDetail: true},
			{ID: 22, TableID: 2, Name: "amount", Datatype: lowcoder.DatatypeDecimal, MaxDigits: intPtr(4), DecimalPlaces: intPtr(2), Index: 2, ShowInList: true, ShowInDetail: true},
			{ID: 23, TableID: 2, Name: "placed", Datatype: lowcoder.DatatypeDateTime, Index: 3, ShowInDetail: true},
		},
	}
	return &ExportInput{
		Project:  lowcoder.Project{ID: 1, Name: "Car Rental"},
		Settings: lowcoder.ProjectSettings{AdminName: "administrator", AdminPassword: "secret123"},
		User:     lowcoder.User{Username: "jdoe", Email: "jdoe@example.com"},
		Schema:   &lowcoder.SchemaSnapshot{Tables: []lowcoder.TableModel{customers, orders}},
		Headlines: map[int64]*lowcoder.Headline{
			1: {Content: []lowcoder.Row{{"name": "Ada", "status": "active"}, {"name": "Bob", "status": "inactive"}}},
			2: {Content: []lowcoder.Row{{"customer": "Bob", "amount": 12.5, "placed": nil}}},
		},
		Columns: map[int64]*lowcoder.Column{
			11: {Name: "name"}, 12: {Name: "status"},
			21: {Name: "customer"}, 22: {Name: "amount"}, 23: {Name: "placed"},
		},
	}
}

func newTestDjangoExporter(t *testing.T) *DjangoExporter {
	t.Helper()
	validator, err := NewFixtureValidator()
	require.NoError(t, err)
	e := NewDjangoExporter(lowcoder.GenerationConfig{AutocompleteMaxFields: 20}, nil, validator)
	e.nowFunc = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return e
}

func TestDjangoExporter_Export(t *testing.T) {
	e := newTestDjangoExporter(t)
	in := exportFixture()
	in.ProjectRoot = filepath.Join(t.TempDir(), "car-rental")

	root, err := e.Export(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.ProjectRoot, root)

	models, err := os.ReadFile(filepath.Join(root, "core", "models.py"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(models), "# Created by Django LowCoder at 2026-01-02 03:04:05\n\nfrom django.db import models\n"))
	assert.Contains(t, string(models), "class Customers(models.Model):\n"+
		"    name = models.CharField(max_length=30, unique=True)\n"+
		"    status = models.IntegerField(choices=[(1, 'active'), (2, 'inactive')])\n\n"+
		"    def __str__(self):\n"+
		"        return f'{self.id}'\n")
	assert.Contains(t, string(models), "    customer = models.ForeignKey('Customers', on_delete=models.CASCADE)\n")
	assert.Contains(t, string(models), "    amount = models.DecimalField(max_digits=4, decimal_places=2)\n")

	admin, err := os.ReadFile(filepath.Join(root, "core", "admin.py"))
	require.NoError(t, err)
	assert.Contains(t, string(admin), "from .models import Customers, Orders\n")
	assert.Contains(t, string(admin), "@admin.register(Customers)\nclass CustomersAdmin(admin.ModelAdmin):\n"+
		"    fields = ['name', 'status']\n"+
		"    list_display = ['name', 'status']\n"+
		"    list_filter = ['status']\n")
	assert.Contains(t, string(admin), "    date_hierarchy = 'placed'\n")
	assert.Contains(t, string(admin), "    autocomplete_fields = ['customer']\n")

	raw, err := os.ReadFile(filepath.Join(root, "core", "fixtures", "initial_data.json"))
	require.NoError(t, err)
	var fixtures []map[string]any
	require.NoError(t, json.Unmarshal(raw, &fixtures))
	assert.Equal(t, []map[string]any{
		{"model": "core.customers", "pk": float64(1), "fields": map[string]any{"name": "Ada", "status": float64(1)}},
		{"model": "core.customers", "pk": float64(2), "fields": map[string]any{"name": "Bob", "status": float64(2)}},
		{"model": "core.orders", "pk": float64(1), "fields": map[string]any{"customer": float64(2), "amount": 12.5, "placed": nil}},
	}, fixtures)

	info, err := os.Stat(filepath.Join(root, "start.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)
}

func TestDjangoExporter_EmptySchema(t *testing.T) {
	e := newTestDjangoExporter(t)
	in := &ExportInput{Project: lowcoder.Project{Name: "Empty Shop"}, ProjectRoot: t.TempDir()}

	_, err := e.Export(context.Background(), in)
	require.NoError(t, err)

	admin, err := os.ReadFile(filepath.Join(in.ProjectRoot, "core", "admin.py"))
	require.NoError(t, err)
	assert.NotContains(t, string(admin), "from .models")

	raw, err := os.ReadFile(filepath.Join(in.ProjectRoot, "core", "fixtures", "initial_data.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestRenderAdmin_EmptyClassPasses(t *testing.T) {
	e := newTestDjangoExporter(t)
	m := buildDjangoModel(&lowcoder.SchemaSnapshot{Tables: []lowcoder.TableModel{{Table: lowcoder.Table{ID: 1, Name: "Blank", Index: 1}}}})
	out, err := e.renderAdmin(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), "class BlankAdmin(admin.ModelAdmin):\n    pass\n")
}

func TestRenderStartScript(t *testing.T) {
	t.Run("containerized", func(t *testing.T) {
		out, err := renderStartScript(startScriptData{Slug: "shop", AppName: "core", AdminName: "O'Neil", DockerRoot: "/srv/shop", Containerized: true})
		require.NoError(t, err)
		script := string(out)
		assert.Contains(t, script, `export DJANGO_SUPERUSER_USERNAME='O'\''Neil'`)
		assert.Contains(t, script, "cd '/srv/shop'\n")
		assert.Contains(t, script, `docker compose -f "$COMPOSE_FILE" run --rm django python manage.py makemigrations core`)
		assert.NotContains(t, script, "runserver")
	})

	t.Run("local", func(t *testing.T) {
		out, err := renderStartScript(startScriptData{Slug: "shop", AppName: "core"})
		require.NoError(t, err)
		script := string(out)
		assert.Contains(t, script, "DB_CONTAINER='shop-db'\n")
		assert.Contains(t, script, "python manage.py loaddata core/fixtures/initial_data.json\n")
		assert.Contains(t, script, "python manage.py runserver 0.0.0.0:8000\n")
		assert.NotContains(t, script, "docker compose")
	})
}

func TestModelExporters_Lookup(t *testing.T) {
	exporters := ModelExporters{lowcoder.ModelExporterJPA: JPAExporter{}}

	jpa, ok := exporters.Lookup(lowcoder.ModelExporterJPA)
	require.True(t, ok)
	root, err := jpa.Export(context.Background(), &ExportInput{})
	require.NoError(t, err)
	assert.Empty(t, root)

	_, ok = exporters.Lookup(lowcoder.ModelExporterDjango)
	assert.False(t, ok)
}
