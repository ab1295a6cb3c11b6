package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "import-blueprint", "token"} {
		assert.True(t, names[want], want)
	}
}

func TestTokenCommandPrintsJWT(t *testing.T) {
	t.Setenv("GUILDOPS_CONFIG", "")
	t.Setenv("JWT_SECRET_KEY", "cli-secret")
	t.Setenv("LOG_MODE", "test")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user", uuid.NewString(), "--name", "Anduin"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out.String()), "."))
}

func TestTokenCommandRejectsBadUser(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"token", "--user", "nope"})
	assert.ErrorContains(t, cmd.Execute(), "--user must be a uuid")
}

func TestImportBlueprintRequiresFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"import-blueprint", "--file", "graph.yaml"})
	assert.Error(t, cmd.Execute())
}
