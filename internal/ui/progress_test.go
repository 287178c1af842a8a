package ui

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReaderCountsBytes(t *testing.T) {
	payload := strings.Repeat("x", 10000)
	var out bytes.Buffer

	pr := NewProgressReader(strings.NewReader(payload), &out, int64(len(payload)), "downloading")
	data, err := io.ReadAll(pr)
	require.NoError(t, err)
	require.NoError(t, pr.Close())

	assert.Equal(t, payload, string(data))
	assert.Equal(t, int64(len(payload)), pr.Bytes())
	assert.Contains(t, out.String(), "downloading")
}

func TestProgressReaderUnknownLength(t *testing.T) {
	pr := NewProgressReader(strings.NewReader("abc"), io.Discard, -1, "fetching")

	data, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, int64(3), pr.Bytes())
}
