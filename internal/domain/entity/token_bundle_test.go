package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBundleIsFresh(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bundle := TokenBundle{
		AccessToken: "token",
		ExpiresIn:   28800, // 8 hours
		IssuedAt:    issued,
	}
	tolerance := DefaultFreshnessTolerance
	cutoff := issued.Add(8*time.Hour - tolerance)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just issued", issued, true},
		{"one second before cutoff", cutoff.Add(-time.Second), true},
		{"exactly at cutoff", cutoff, false},
		{"one second after cutoff", cutoff.Add(time.Second), false},
		{"long expired", issued.Add(24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bundle.IsFresh(tt.now, tolerance))
		})
	}
}

func TestTokenBundleIsFreshZeroLifetime(t *testing.T) {
	bundle := TokenBundle{IssuedAt: time.Now()}
	assert.False(t, bundle.IsFresh(time.Now(), DefaultFreshnessTolerance))
}

func TestAccountPasswordHelpers(t *testing.T) {
	a := &Account{}
	assert.False(t, a.HasPassword())
	assert.False(t, a.CheckPassword("anything"))

	a.Password = "secret123"
	assert.NoError(t, a.BeforeSave(nil))
	assert.True(t, a.HasPassword())
	assert.True(t, a.CheckPassword("secret123"))
	assert.False(t, a.CheckPassword("wrong"))

	// A second save must not re-hash the stored hash.
	hash := a.Password
	assert.NoError(t, a.BeforeSave(nil))
	assert.Equal(t, hash, a.Password)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "new@user.com", NormalizeEmail("  New@User.COM "))
}
