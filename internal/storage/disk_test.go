// AngelaMos | 2026
// disk_test.go

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskPutGetList(t *testing.T) {
	ctx := context.Background()
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	name, err := d.Put(ctx, "exports/students_20260101_120000.json", []byte(`[1]`))
	require.NoError(t, err)
	assert.Equal(t, "exports/students_20260101_120000.json", name)

	got, err := d.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(got))

	names, err := d.List(ctx, "exports")
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)

	names, err = d.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDiskRejectsEscape(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	_, err = d.Put(context.Background(), "../outside.json", nil)
	assert.Error(t, err)
}
