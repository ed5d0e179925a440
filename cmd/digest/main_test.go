package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubcommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "clusters", "export", "serve", "sink"} {
		assert.Contains(t, names, want)
	}
}

func TestRunWorkersFlag(t *testing.T) {
	f := runCmd.Flags().Lookup("workers")
	if assert.NotNil(t, f) {
		assert.Equal(t, "0", f.DefValue)
	}
}
