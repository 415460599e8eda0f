package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErr_CodePropagates(t *testing.T) {
	err := eris.Wrap(exitErr(4, eris.New("strict validation: 2 of 5 rows blocked")), "reconcile validate")

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 4, ee.code)
	assert.Contains(t, ee.Error(), "rows blocked")
}

func TestExitErr_NilErrorGetsPlaceholder(t *testing.T) {
	err := exitErr(2, nil)

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.code)
	assert.Equal(t, "exit 2", ee.Error())
}

func TestExitErr_PlainErrorIsNotExitError(t *testing.T) {
	var ee *exitError
	assert.False(t, errors.As(eris.New("boom"), &ee))
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeReport(path, map[string]any{"status": "ok"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "ok"}`, string(data))
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func TestWriteReport_UnmarshalableValue(t *testing.T) {
	err := writeReport("", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}
