package countries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCatalogue(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	all := c.All()
	assert.Greater(t, len(all), 200)

	in, ok := c.Lookup("in")
	require.True(t, ok)
	assert.Equal(t, "IN", in.Code)
	assert.Equal(t, "India", in.Name)

	no, ok := c.Lookup("NO")
	require.True(t, ok)
	assert.Equal(t, "Norway", no.Name)

	_, ok = c.Lookup("XX")
	assert.False(t, ok)
}

func TestParseRejectsBadCatalogues(t *testing.T) {
	_, err := Parse([]byte("countries:\n  - code: USA\n    name: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("countries:\n  - code: US\n    name: a\n  - code: us\n    name: b\n"))
	assert.Error(t, err)
}
