package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Indexes(t *testing.T) {
	r := DefaultRegistry()

	phone := r.ByKey("phone")
	require.NotNil(t, phone)
	assert.Equal(t, PriorityCritical, phone.Priority)
	assert.True(t, phone.Required)

	assert.Nil(t, r.ByKey("no_such_field"))
	assert.NotEmpty(t, r.Critical())
	assert.NotEmpty(t, r.Required())

	for _, f := range r.Critical() {
		assert.Equal(t, PriorityCritical, f.Priority)
	}
}

func TestDefaultRegistry_TotalWeight(t *testing.T) {
	r := DefaultRegistry()

	var sum float64
	for _, f := range r.Fields {
		sum += f.Weight
	}
	assert.Equal(t, sum, r.TotalWeight())
	assert.Greater(t, r.TotalWeight(), 0.0)
}

func TestGapFillOrder_FixedWalkFirst(t *testing.T) {
	r := DefaultRegistry()
	order := r.GapFillOrder()

	require.GreaterOrEqual(t, len(order), 4)
	assert.Equal(t, []string{"phone", "email", "skills", "careers"}, order[:4])

	// Every registry field appears exactly once.
	seen := make(map[string]int)
	for _, k := range order {
		seen[k]++
	}
	assert.Len(t, seen, len(r.Fields))
	for k, n := range seen {
		assert.Equal(t, 1, n, "field %s listed more than once", k)
	}
}

func TestRegistryFromYAML_OverridesAndAppends(t *testing.T) {
	data := []byte(`
fields:
  - key: phone
    kind: string
    priority: critical
    weight: 3.0
    required: true
  - key: portfolio_url
    kind: string
    priority: optional
    weight: 0.25
`)
	r, err := RegistryFromYAML(data)
	require.NoError(t, err)

	phone := r.ByKey("phone")
	require.NotNil(t, phone)
	assert.Equal(t, 3.0, phone.Weight)

	added := r.ByKey("portfolio_url")
	require.NotNil(t, added)
	assert.Equal(t, PriorityOptional, added.Priority)

	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultRegistry().ByKey("email").Weight, r.ByKey("email").Weight)
}

func TestRegistryFromYAML_Malformed(t *testing.T) {
	_, err := RegistryFromYAML([]byte("fields: [not: valid"))
	assert.Error(t, err)
}
