package api

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/covenant/pkg/mediator"
	"github.com/codeready-toolchain/covenant/pkg/store"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestRespondError_ValidationErrorYields400(t *testing.T) {
	c, w := newTestContext()
	respondError(c, &mediator.ValidationError{Field: "intent", Reason: "must not be empty"})
	assert.Equal(t, 400, w.Code)
}

func TestRespondError_NotFoundYields404(t *testing.T) {
	c, w := newTestContext()
	respondError(c, store.ErrCovenantNotFound)
	assert.Equal(t, 404, w.Code)
}

func TestRespondError_UnexpectedYields500(t *testing.T) {
	c, w := newTestContext()
	respondError(c, errors.New("boom"))
	assert.Equal(t, 500, w.Code)
}
