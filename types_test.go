package lowcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatatype(t *testing.T) {
	d, err := ParseDatatype(" char ")
	require.NoError(t, err)
	assert.Equal(t, DatatypeChar, d)

	d, err = ParseDatatype("VARCHAR")
	assert.Error(t, err)
	assert.Equal(t, DatatypeNone, d)
}

func TestDatatypeDjangoFieldClass(t *testing.T) {
	assert.Equal(t, "CharField", DatatypeChar.DjangoFieldClass())
	assert.Equal(t, "DecimalField", DatatypeDecimal.DjangoFieldClass())
	assert.Equal(t, "TextField", DatatypeNone.DjangoFieldClass())
	assert.Equal(t, "TextField", Datatype("BOGUS").DjangoFieldClass())

	assert.True(t, DatatypeDateTime.IsTemporal())
	assert.False(t, DatatypeTime.IsTemporal())
}

func TestChoicesKeyForLabel(t *testing.T) {
	c := Choices{{Key: 1, Label: "open"}, {Key: 2, Label: "closed"}}

	key, ok := c.KeyForLabel("closed")
	assert.True(t, ok)
	assert.Equal(t, 2, key)

	_, ok = c.KeyForLabel("Closed")
	assert.False(t, ok)
}

func TestDeployType(t *testing.T) {
	d, err := ParseDeployType("docker")
	require.NoError(t, err)
	assert.Equal(t, DeployTypeDocker, d)
	assert.True(t, d.Containerized())
	assert.Equal(t, "DOCKER", d.String())

	assert.False(t, DeployTypePaaS.Containerized())
	assert.Equal(t, "DeployType(9)", DeployType(9).String())

	_, err = ParseDeployType("k8s")
	assert.Error(t, err)
}

func TestProjectSlugName(t *testing.T) {
	assert.Equal(t, "car-rental", (&Project{Name: "Car Rental"}).SlugName())
	assert.Equal(t, "cr", (&Project{Name: "Car Rental", Slug: "cr"}).SlugName())
}

func TestSheetReaderParamsHeadlineRow(t *testing.T) {
	assert.Equal(t, 3, SheetReaderParams{Header: 1, SkipRows: 2}.HeadlineRow())
}

func TestNotices(t *testing.T) {
	var n Notices
	n.Infof("Table %s created", "Orders")
	n.Warnf("Sheet %s could not be read: %v", "Summary", "bad cell")

	assert.Equal(t, Notices{
		{Level: NoticeInfo, Message: "Table Orders created"},
		{Level: NoticeWarning, Message: "Sheet Summary could not be read: bad cell"},
	}, n)
}
