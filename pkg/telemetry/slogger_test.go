// SPDX-License-Identifier: GPL-3.0-or-later

package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnsreplay/engine/pkg/telemetry"
)

func TestDefaultSLogger(t *testing.T) {
	logger := telemetry.DefaultSLogger()
	assert.NotNil(t, logger)
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
}
