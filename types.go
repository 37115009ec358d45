package lowcoder

import (
	"fmt"
	"strings"
	"time"
)

// Timestamps is embedded by value in every persisted entity. The repository
// sets both values on insert and refreshes UpdatedAt on update.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Datatype is the generated column type of a Field.
type Datatype string

const (
	DatatypeNone                 Datatype = "NONE"
	DatatypeBigInteger           Datatype = "BIG_INTEGER"
	DatatypeBinary               Datatype = "BINARY"
	DatatypeBoolean              Datatype = "BOOLEAN"
	DatatypeChar                 Datatype = "CHAR"
	DatatypeCommaSepInteger      Datatype = "COMMA_SEP_INTEGER"
	DatatypeDate                 Datatype = "DATE"
	DatatypeDateTime             Datatype = "DATETIME"
	DatatypeDecimal              Datatype = "DECIMAL"
	DatatypeDuration             Datatype = "DURATION"
	DatatypeEmail                Datatype = "EMAIL"
	DatatypeGenericField         Datatype = "GENERIC_FIELD"
	DatatypeFilePath             Datatype = "FILE_PATH"
	DatatypeFloat                Datatype = "FLOAT"
	DatatypeIPAddressGeneric     Datatype = "IP_ADDRESS_GENERIC"
	DatatypeInteger              Datatype = "INTEGER"
	DatatypeNullableBoolean      Datatype = "NULLABLE_BOOLEAN"
	DatatypePositiveBigInteger   Datatype = "POSITIVE_BIG_INTEGER"
	DatatypePositiveInteger      Datatype = "POSITIVE_INTEGER"
	DatatypePositiveSmallInteger Datatype = "POSITIVE_SMALL_INTEGER"
	DatatypeSlug                 Datatype = "SLUG"
	DatatypeSmallAuto            Datatype = "SMALL_AUTO"
	DatatypeSmallInteger         Datatype = "SMALL_INTEGER"
	DatatypeText                 Datatype = "TEXT"
	DatatypeTime                 Datatype = "TIME"
	DatatypeURL                  Datatype = "URL"
	DatatypeUUID                 Datatype = "UUID"
	DatatypeAuto                 Datatype = "AUTO"
	DatatypeBigAuto              Datatype = "BIG_AUTO"
	DatatypeFile                 Datatype = "FILE"
	DatatypeJSON                 Datatype = "JSON"
)

// djangoFieldClasses maps each datatype to the Django model field class that
// renders it. NONE falls back to a text column so generated code still loads.
var djangoFieldClasses = map[Datatype]string{
	DatatypeNone:                 "TextField",
	DatatypeBigInteger:           "BigIntegerField",
	DatatypeBinary:               "BinaryField",
	DatatypeBoolean:              "BooleanField",
	DatatypeChar:                 "CharField",
	DatatypeCommaSepInteger:      "CommaSeparatedIntegerField",
	DatatypeDate:                 "DateField",
	DatatypeDateTime:             "DateTimeField",
	DatatypeDecimal:              "DecimalField",
	DatatypeDuration:             "DurationField",
	DatatypeEmail:                "EmailField",
	DatatypeGenericField:         "Field",
	DatatypeFilePath:             "FilePathField",
	DatatypeFloat:                "FloatField",
	DatatypeIPAddressGeneric:     "GenericIPAddressField",
	DatatypeInteger:              "IntegerField",
	DatatypeNullableBoolean:      "NullBooleanField",
	DatatypePositiveBigInteger:   "PositiveBigIntegerField",
	DatatypePositiveInteger:      "PositiveIntegerField",
	DatatypePositiveSmallInteger: "PositiveSmallIntegerField",
	DatatypeSlug:                 "SlugField",
	DatatypeSmallAuto:            "SmallAutoField",
	DatatypeSmallInteger:         "SmallIntegerField",
	DatatypeText:                 "TextField",
	DatatypeTime:                 "TimeField",
	DatatypeURL:                  "URLField",
	DatatypeUUID:                 "UUIDField",
	DatatypeAuto:                 "AutoField",
	DatatypeBigAuto:              "BigAutoField",
	DatatypeFile:                 "FileField",
	DatatypeJSON:                 "JSONField",
}

// IsValid reports whether d is one of the declared datatypes.
func (d Datatype) IsValid() bool {
	_, ok := djangoFieldClasses[d]
	return ok
}

// DjangoFieldClass returns the model field class name, e.g. "CharField".
func (d Datatype) DjangoFieldClass() string {
	if cls, ok := djangoFieldClasses[d]; ok {
		return cls
	}
	return djangoFieldClasses[DatatypeNone]
}

// IsTemporal reports whether the datatype carries a calendar date.
func (d Datatype) IsTemporal() bool {
	return d == DatatypeDate || d == DatatypeDateTime
}

// ParseDatatype parses the upper-case datatype name.
func ParseDatatype(s string) (Datatype, error) {
	d := Datatype(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return DatatypeNone, fmt.Errorf("unknown datatype %q", s)
	}
	return d, nil
}

// Choice is one entry of a bounded enumeration, stored by integer key.
type Choice struct {
	Key   int    `json:"key"`
	Label string `json:"label"`
}

// Choices keeps insertion order; keys start at 1.
type Choices []Choice

// KeyForLabel returns the integer key of a display label.
func (c Choices) KeyForLabel(label string) (int, bool) {
	for _, choice := range c {
		if choice.Label == label {
			return choice.Key, true
		}
	}
	return 0, false
}

// Schema groups the tables generated for one project.
type Schema struct {
	ID        int64 `json:"id"`
	ProjectID int64 `json:"projectId"`
	Timestamps
}

// Table is one generated entity definition.
type Table struct {
	ID           int64  `json:"id"`
	SchemaID     int64  `json:"schemaId"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Index        int    `json:"index"`
	IsMainEntity bool   `json:"isMainEntity"`
	Exclude      bool   `json:"exclude"`
	HeadlineID   *int64 `json:"headlineId,omitempty"`
	Timestamps
}

// Field is one generated column definition.
type Field struct {
	ID                int64    `json:"id"`
	TableID           int64    `json:"tableId"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Datatype          Datatype `json:"datatype"`
	MaxLength         *int     `json:"maxLength,omitempty"`
	MaxDigits         *int     `json:"maxDigits,omitempty"`
	DecimalPlaces     *int     `json:"decimalPlaces,omitempty"`
	DefaultValue      *string  `json:"defaultValue,omitempty"`
	Choices           Choices  `json:"choices,omitempty"`
	Blank             bool     `json:"blank"`
	Null              bool     `json:"null"`
	ForeignKeyTableID *int64   `json:"foreignKeyTableId,omitempty"`
	IsUnique          bool     `json:"isUnique"`
	UseIndex          bool     `json:"useIndex"`
	ShowInList        bool     `json:"showInList"`
	ShowInDetail      bool     `json:"showInDetail"`
	ValidationPattern string   `json:"validationPattern,omitempty"`
	Exclude           bool     `json:"exclude"`
	Index             int      `json:"index"`
	ColumnID          *int64   `json:"columnId,omitempty"`
	Timestamps
}

// NewField returns a field with the presentation defaults used by the
// manual editor.
func NewField(tableID int64, name string, datatype Datatype) *Field {
	return &Field{
		TableID:      tableID,
		Name:         name,
		Datatype:     datatype,
		ShowInList:   true,
		ShowInDetail: true,
	}
}

// SourceDocument is an uploaded spreadsheet or CSV owned by one schema.
type SourceDocument struct {
	ID         int64  `json:"id"`
	SchemaID   int64  `json:"schemaId"`
	FileName   string `json:"fileName"`
	StorageKey string `json:"storageKey,omitempty"`
	Timestamps
}

// Sheet is one sheet of a document. Index is 1-based in document order.
type Sheet struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"documentId"`
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Timestamps
}

// Row is one cached data row keyed by source column name.
type Row map[string]any

// Headline is the detected header row of a sheet plus its cached rows.
type Headline struct {
	ID       int64 `json:"id"`
	SheetID  int64 `json:"sheetId"`
	RowIndex int   `json:"rowIndex"`
	Content  []Row `json:"content,omitempty"`
	Timestamps
}

// Column is one header cell of a headline.
type Column struct {
	ID          int64  `json:"id"`
	HeadlineID  int64  `json:"headlineId"`
	ColumnIndex int    `json:"columnIndex"`
	Name        string `json:"name"`
	Timestamps
}

// SheetReaderParams controls how one sheet is read.
type SheetReaderParams struct {
	Header     int      `json:"header" yaml:"header"`
	UseCols    []string `json:"useCols,omitempty" yaml:"useCols,omitempty"`
	IndexCol   *int     `json:"indexCol,omitempty" yaml:"indexCol,omitempty"`
	SkipRows   int      `json:"skipRows" yaml:"skipRows"`
	NRows      *int     `json:"nRows,omitempty" yaml:"nRows,omitempty"`
	SkipFooter int      `json:"skipFooter" yaml:"skipFooter"`
	Decimal    string   `json:"decimal,omitempty" yaml:"decimal,omitempty"`
}

// HeadlineRow is the row index of the header within the raw sheet.
func (p SheetReaderParams) HeadlineRow() int {
	return p.Header + p.SkipRows
}

// ModelExporterClass selects the code generation backend of a template.
type ModelExporterClass string

const (
	ModelExporterJPA    ModelExporterClass = "JPA"
	ModelExporterDjango ModelExporterClass = "DJANGO"
)

// CodeTemplate is a registered code generation target.
type CodeTemplate struct {
	ID                  int64                   `json:"id" yaml:"id"`
	Name                string                  `json:"name" yaml:"name"`
	Version             string                  `json:"version" yaml:"version"`
	Path                string                  `json:"path" yaml:"path"`
	ProgrammingLanguage string                  `json:"programmingLanguage" yaml:"programmingLanguage"`
	ModelExporter       ModelExporterClass      `json:"modelExporter" yaml:"modelExporter"`
	Parameters          []CodeTemplateParameter `json:"parameters" yaml:"parameters"`
}

// CodeTemplateParameter is a name plus a raw value that may embed a single
// {{token}} placeholder. A nil Value is passed through as absent.
type CodeTemplateParameter struct {
	Name  string  `json:"name" yaml:"name"`
	Value *string `json:"value" yaml:"value"`
}

// DeployType is the deployment mode of a generated project.
type DeployType int

const (
	DeployTypeLocal DeployType = iota
	DeployTypeGit
	DeployTypeDocker
	DeployTypePaaS
)

var deployTypeNames = map[DeployType]string{
	DeployTypeLocal:  "LOCAL",
	DeployTypeGit:    "GIT",
	DeployTypeDocker: "DOCKER",
	DeployTypePaaS:   "PAAS",
}

func (d DeployType) String() string {
	if name, ok := deployTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DeployType(%d)", int(d))
}

// Containerized reports whether the start script targets a container runtime.
func (d DeployType) Containerized() bool {
	return d == DeployTypeDocker
}

// ParseDeployType parses LOCAL, GIT, DOCKER or PAAS.
func ParseDeployType(s string) (DeployType, error) {
	for d, name := range deployTypeNames {
		if strings.EqualFold(name, s) {
			return d, nil
		}
	}
	return DeployTypeLocal, fmt.Errorf("unknown deploy type %q", s)
}

// Project is the owner of one schema.
type Project struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Slug        string `json:"slug,omitempty" yaml:"slug,omitempty"`
	Description string `json:"description" yaml:"description"`
}

// SlugName returns the explicit slug or one derived from the name.
func (p *Project) SlugName() string {
	if p.Slug != "" {
		return p.Slug
	}
	return Slugify(p.Name)
}

// ProjectSettings carries deployment credentials of a project.
type ProjectSettings struct {
	DomainName    string `json:"domainName" yaml:"domainName"`
	AdminName     string `json:"adminName" yaml:"adminName"`
	AdminPassword string `json:"adminPassword" yaml:"adminPassword"`
	DockerRoot    string `json:"dockerRoot" yaml:"dockerRoot"`
}

// User is the project owner.
type User struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
}

// NoticeLevel is the severity of a user visible notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is an informational message collected during import or generation.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notices accumulates messages for one call.
type Notices []Notice

func (n *Notices) Infof(format string, args ...any) {
	*n = append(*n, Notice{Level: NoticeInfo, Message: fmt.Sprintf(format, args...)})
}

func (n *Notices) Warnf(format string, args ...any) {
	*n = append(*n, Notice{Level: NoticeWarning, Message: fmt.Sprintf(format, args...)})
}
