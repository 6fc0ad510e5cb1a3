package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptConfirm(t *testing.T) {
	var out bytes.Buffer
	confirm := promptConfirm(strings.NewReader("y\nno\nYes\n\n"), &out)
	ctx := context.Background()

	assert.True(t, confirm(ctx, "Burn 1000 points"))
	assert.False(t, confirm(ctx, "Burn 1000 points"))
	assert.True(t, confirm(ctx, "Burn 1000 points"))
	assert.False(t, confirm(ctx, "Burn 1000 points"))
	// input exhausted
	assert.False(t, confirm(ctx, "Burn 1000 points"))

	assert.Equal(t, 5, strings.Count(out.String(), "Burn 1000 points? [y/N] "))
}
