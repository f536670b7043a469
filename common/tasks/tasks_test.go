package tasks

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupRecoversPanic(t *testing.T) {
	var crit atomic.Value
	g := Group{HandleCrit: func(err error) { crit.Store(err) }}

	g.Go(func() error { panic("boom") })
	require.NoError(t, g.Wait())

	err, ok := crit.Load().(error)
	require.True(t, ok)
	require.Contains(t, err.Error(), "boom")
}

func TestGroupReturnsFirstError(t *testing.T) {
	var g Group
	want := errors.New("task failed")
	g.Go(func() error { return want })
	g.Go(func() error { return nil })
	require.ErrorIs(t, g.Wait(), want)
}
