package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

func TestParse(t *testing.T) {
	data := []byte(`
; household details
[profile]
name = Lakshmi
state = Tamil Nadu
board = TANGEDCO
service_number = 09-123-456
region = Chennai

[other]
name = ignored
`)

	p, err := Parse(data)

	require.NoError(t, err)
	assert.Equal(t, models.Profile{
		Name:          "Lakshmi",
		State:         "Tamil Nadu",
		Board:         "TANGEDCO",
		ServiceNumber: "09-123-456",
		Region:        "Chennai",
	}, p)
}

func TestParse_MissingKeysAreEmpty(t *testing.T) {
	p, err := Parse([]byte("[profile]\nstate = Kerala\n"))

	require.NoError(t, err)
	assert.Equal(t, "Kerala", p.State)
	assert.Empty(t, p.Board)
	assert.False(t, p.IsZero())
}

func TestParse_MissingSection(t *testing.T) {
	_, err := Parse([]byte("[household]\nstate = Goa\n"))

	assert.ErrorContains(t, err, "[profile]")
}

func TestLoad(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		p, err := Load("")
		require.NoError(t, err)
		assert.True(t, p.IsZero())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.ini")
		require.NoError(t, os.WriteFile(path, []byte("[profile]\nboard = KSEB\n"), 0o600))

		p, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "KSEB", p.Board)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
		assert.Error(t, err)
	})
}
