package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "carbonregistry/pkg/domain-errors"
)

func TestParseSubDomain(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubDomain("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects unknown sub-domain", func(t *testing.T) {
		_, err := ParseSubDomain("FORESTRY")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedSubDomain))
	})

	t.Run("is case sensitive", func(t *testing.T) {
		_, err := ParseSubDomain("agriculture")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedSubDomain))
	})

	t.Run("accepts every supported value", func(t *testing.T) {
		for _, d := range SupportedSubDomains() {
			got, err := ParseSubDomain(d.String())
			require.NoError(t, err)
			assert.Equal(t, d, got)
		}
	})
}
