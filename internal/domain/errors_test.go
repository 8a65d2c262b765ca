package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	assert.Equal(t, "query is empty", ErrValidation("query is empty").Error())
	assert.Equal(t, "SET statements are not allowed", ErrQueryRejected("%s statements are not allowed", "SET").Error())
}

func TestInitError(t *testing.T) {
	cause := errors.New("IO Error: extension not found")
	err := fmt.Errorf("ensure ready: %w", &InitError{Step: "load extension iceberg", Err: cause})

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "load extension iceberg", initErr.Step)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ensure ready: initialize engine (load extension iceberg): IO Error: extension not found", err.Error())
}

func TestEngineError(t *testing.T) {
	cause := errors.New("Catalog Error: Table with name x does not exist!")
	err := ErrEngine(cause)

	assert.Equal(t, cause.Error(), err.Error())
	assert.ErrorIs(t, err, cause)
}
