package lineage

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   ErrorKind
		status int
	}{
		{name: "invalid parameter", err: NewInvalidParameterError("m", "guid"), kind: KindInvalidParameter, status: http.StatusBadRequest},
		{name: "not authorized", err: NewNotAuthorizedError("m", "g", []string{"a"}), kind: KindNotAuthorized, status: http.StatusForbidden},
		{name: "multiple relationships", err: NewMultipleRelationshipsFoundError("m", "g", AttributeForSchema, 2), kind: KindMultipleRelationshipsFound, status: http.StatusConflict},
		{name: "endpoint mismatch", err: NewEndpointMismatchError("m", "g", "r"), kind: KindEndpointMismatch, status: http.StatusInternalServerError},
		{name: "not found", err: NewElementNotFoundError("m", "g", Topic), kind: KindElementNotFound, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.status, httperror.GetStatusCode(tt.err))
		})
	}

	t.Run("other errors have no kind", func(t *testing.T) {
		assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
		assert.Equal(t, ErrorKind(""), KindOf(nil))
		assert.False(t, IsNotAuthorized(nil))
	})
}
