package errs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverability(t *testing.T) {
	recoverable := []Kind{KindIO, KindSessionPersist, KindInvalidInput, KindExternalService, KindTimeout, KindChannel}
	for _, k := range recoverable {
		assert.True(t, k.Recoverable(), "kind %s should be recoverable", k)
	}
	unrecoverable := []Kind{KindSecurity, KindConfig, KindSerialization, KindPathValidation}
	for _, k := range unrecoverable {
		assert.False(t, k.Recoverable(), "kind %s should not be recoverable", k)
	}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatal, KindSecurity.Severity())
	assert.Equal(t, SeverityFatal, KindConfig.Severity())
	assert.Equal(t, SeverityHigh, KindSerialization.Severity())
	assert.Equal(t, SeverityLow, KindTimeout.Severity())
}

func TestExternalServiceSeverityDependsOnService(t *testing.T) {
	assert.Equal(t, SeverityHigh, ExternalService("telegram", "down").Severity())
	assert.Equal(t, SeverityHigh, ExternalService("llm", "down").Severity())
	assert.Equal(t, SeverityMedium, ExternalService("weather", "down").Severity())
}

func TestSuggestions(t *testing.T) {
	assert.Contains(t, ExternalService("telegram", "401").Suggestion(), "TELEGRAM_BOT_TOKEN")
	assert.Contains(t, ExternalService("llm", "401").Suggestion(), "API key")
	assert.Contains(t, Config("bad json").Suggestion(), "config.json")
	assert.Contains(t, PathValidation("escape").Suggestion(), "allowed directories")
	assert.Empty(t, Security("nope").Suggestion())
}

func TestSanitizePathInsideHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory in this environment")
	}
	e := IO(filepath.Join(home, "notes", "x.txt"), errors.New("denied"))
	assert.Contains(t, e.Error(), "~"+string(filepath.Separator)+"notes")
	assert.NotContains(t, e.Error(), home)
}

func TestSanitizePathOutsideHome(t *testing.T) {
	e := IO("/srv/data/secret.txt", errors.New("denied"))
	assert.Contains(t, e.Error(), "<sanitized>/secret.txt")
	assert.NotContains(t, e.Error(), "/srv/data")
}

func TestErrorsAsExposesKind(t *testing.T) {
	var me *Error
	err := error(Timeout("llm call", 30))
	assert.True(t, errors.As(err, &me))
	assert.Equal(t, KindTimeout, me.Kind)
	assert.Contains(t, me.Error(), "30s")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("no space left on device")))
	assert.True(t, IsTransient(errors.New("resource temporarily unavailable")))
	assert.True(t, IsTransient(errors.New("disk I/O error")))
	assert.False(t, IsTransient(errors.New("permission denied")))
	assert.False(t, IsTransient(nil))
}
