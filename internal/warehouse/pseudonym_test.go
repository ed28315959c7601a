package warehouse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pacelog/privacy-service/internal/warehouse"
)

func TestPseudonymizer_Deterministic(t *testing.T) {
	p := warehouse.NewPseudonymizer("service-salt")

	a := p.Key("usr_123")
	b := p.Key("usr_123")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded SHA-256
}

func TestPseudonymizer_DistinctUsersAndSalts(t *testing.T) {
	p := warehouse.NewPseudonymizer("service-salt")
	other := warehouse.NewPseudonymizer("other-salt")

	assert.NotEqual(t, p.Key("usr_123"), p.Key("usr_456"))
	assert.NotEqual(t, p.Key("usr_123"), other.Key("usr_123"))
}

func TestPseudonymizer_NeverLeaksUserID(t *testing.T) {
	p := warehouse.NewPseudonymizer("service-salt")
	assert.NotContains(t, p.Key("usr_123"), "usr_123")
}
