package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldErr(t *testing.T) {
	err := FieldErr("validation.ValidatePort", "upstream_port", "must be in [1, 65535]")
	require.Error(t, err)
	assert.Equal(t, InvalidInput, err.Kind)
	assert.Equal(t, "upstream_port", err.Field)
	assert.Contains(t, err.Error(), "upstream_port")
}

func TestTargetAndIs(t *testing.T) {
	cause := errors.New("boom")
	err := Target(IOFailure, "fileops.AtomicWrite", "/tmp/x.conf", cause)
	assert.True(t, Is(err, IOFailure))
	assert.False(t, Is(err, NotFound))
	assert.Contains(t, err.Error(), "/tmp/x.conf")
	assert.ErrorIs(t, err, cause)
}

func TestWrapPreservesExistingKind(t *testing.T) {
	inner := FieldErr("validation", "config_name", "bad shape")
	outer := Wrap(IOFailure, "configops.Read", "plex.subdomain.conf", inner)
	// Wrap must not override an existing *Error's kind with the caller's
	// default kind; the original classification survives.
	assert.Equal(t, InvalidInput, outer.Kind)
	assert.Equal(t, "config_name", outer.Field)
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(IOFailure, "op", "target", nil))
}

func TestIsOnPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), InvalidInput))
}
