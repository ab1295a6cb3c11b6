package neo4jdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

func TestOpenWithoutURIIsDisabled(t *testing.T) {
	c, err := Open(context.Background(), logger.Nop(), Config{URI: "  "})
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = Open(context.Background(), nil, Config{})
	assert.Error(t, err)
}

func TestConfigTimeoutDefault(t *testing.T) {
	assert.Equal(t, 10*time.Second, Config{}.timeout())
	assert.Equal(t, 3*time.Second, Config{TimeoutSeconds: 3}.timeout())
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Write(context.Background(), nil, nil))
	assert.NoError(t, c.Close(context.Background()))
}
