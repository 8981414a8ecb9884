package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastDecisionReason_ExtractsReasonToken(t *testing.T) {
	reason, message := lastDecisionReason("classify: complexity=simple score=0.10\nfailed: reason=all_providers_failed cause=timeout")
	assert.Equal(t, "all_providers_failed", reason)
	assert.Equal(t, "failed: reason=all_providers_failed cause=timeout", message)
}

func TestLastDecisionReason_NoReasonTokenReturnsLineAsMessage(t *testing.T) {
	reason, message := lastDecisionReason("classify: complexity=simple score=0.10")
	assert.Empty(t, reason)
	assert.Equal(t, "classify: complexity=simple score=0.10", message)
}
