package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionLockKey(t *testing.T) {
	assert.Equal(t, "portfolio:7:AAA", positionLockKey(7, "AAA"))
	// user 1 + "1AAA" must not collide with user 11 + "AAA"
	assert.NotEqual(t, positionLockKey(1, "1AAA"), positionLockKey(11, "AAA"))
	assert.NotEqual(t, positionLockKey(7, "AAA"), positionLockKey(7, "BBB"))
}
