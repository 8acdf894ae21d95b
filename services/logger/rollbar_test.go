package logsvc

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	conf := &core.Config{Env: "TEST", Build: "test"}
	logger := NewRollbarLogger(log.New(&buf, "", 0), conf)
	logger.Enable(true) // no token: stays disabled

	usr := user.User{ID: "u1", Username: "maria"}
	logger.Debug("hidden")
	logger.Warn("chatbot: request failed", errors.New("connection refused"), usr)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: chatbot: request failed")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "user: u1 (maria)")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}
