package model

import (
	"testing"

	"github.com/evergreen-ci/bomtool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSemanticVersion(t *testing.T) {
	for input, expected := range map[string]SemanticVersion{
		"1.2.3":          {Major: 1, Minor: 2, Patch: 3},
		"version-1.2.3":  {Major: 1, Minor: 2, Patch: 3},
		"v0.0.0":         {},
		"release-10.0.1": {Major: 10, Minor: 0, Patch: 1},
	} {
		v, err := ParseSemanticVersion(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, v, input)
	}
}

func TestParseSemanticVersionFailures(t *testing.T) {
	for _, input := range []string{
		"",
		"1.2",
		"1.2.3.4",
		"version-1.2",
		"not a version",
		"1.2.x",
	} {
		_, err := ParseSemanticVersion(input)
		require.Error(t, err, input)
		assert.True(t, bomtool.IsFormatError(err), input)
	}
}

func TestSemanticVersionRoundTrip(t *testing.T) {
	for _, s := range []string{"0.0.0", "1.2.3", "44.55.66", "9.8.7"} {
		v, err := ParseSemanticVersion(s)
		require.NoError(t, err)
		assert.Equal(t, s, v.String())

		tagged, err := ParseSemanticVersion(v.Tag())
		require.NoError(t, err)
		assert.Equal(t, v, tagged)
	}
}

func TestSemanticVersionNext(t *testing.T) {
	v, err := ParseSemanticVersion("1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "1.2.4", v.Next(PatchIndex).String())
	assert.Equal(t, "1.3.0", v.Next(MinorIndex).String())
	assert.Equal(t, "2.0.0", v.Next(MajorIndex).String())

	// the receiver is never mutated
	assert.Equal(t, "1.2.3", v.String())

	assert.Panics(t, func() { v.Next(3) })
}

func TestSemanticVersionOrdering(t *testing.T) {
	ordered := []string{"0.0.0", "0.0.1", "0.1.0", "0.1.1", "1.0.0", "1.0.10", "1.2.0", "2.0.0"}
	for i := 0; i < len(ordered); i++ {
		vi, err := ParseSemanticVersion(ordered[i])
		require.NoError(t, err)
		assert.Zero(t, vi.Compare(vi))
		for j := i + 1; j < len(ordered); j++ {
			vj, err := ParseSemanticVersion(ordered[j])
			require.NoError(t, err)
			assert.True(t, vi.LessThan(vj), "%s < %s", ordered[i], ordered[j])
			assert.False(t, vj.LessThan(vi), "%s < %s", ordered[i], ordered[j])
		}
	}
}

func TestSemanticVersionTag(t *testing.T) {
	v := SemanticVersion{Major: 7, Minor: 8, Patch: 9}
	assert.Equal(t, "version-7.8.9", v.Tag())
}
