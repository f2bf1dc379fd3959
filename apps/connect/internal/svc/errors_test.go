package svc

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/consts"

	"github.com/stretchr/testify/assert"
)

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int32
	}{
		{nil, http.StatusOK, consts.CodeSuccess},
		{fmt.Errorf("%w: bad json", protocol.ErrInvalidFrame), http.StatusBadRequest, consts.CodeBodyError},
		{ErrInvalidArgument, http.StatusBadRequest, consts.CodeParamError},
		{ErrTokenInvalid, http.StatusForbidden, consts.CodeInvalidToken},
		{ErrNotRequestRecipient, http.StatusForbidden, consts.CodePermissionDeny},
		{ErrDestinationNotFound, http.StatusNotFound, consts.CodePeerOffline},
		{ErrNoDeviceToken, http.StatusNotFound, consts.CodeNoDeviceToken},
		{ErrFriendRequestClosed, http.StatusConflict, consts.CodeFriendRequestClosed},
		{persistenceError(repository.ErrDatabase), http.StatusInternalServerError, consts.CodeInternalError},
		{errors.New("unexpected"), http.StatusInternalServerError, consts.CodeInternalError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusOf(tc.err), "%v", tc.err)
		assert.Equal(t, tc.code, CodeOf(tc.err), "%v", tc.err)
	}
}

func TestReasonHidesInternalErrors(t *testing.T) {
	err := persistenceError(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, consts.GetMessage(consts.CodeInternalError), ReasonOf(err))
	assert.Equal(t, "could not forward", ReasonOf(ErrDestinationNotFound))
	assert.Empty(t, ReasonOf(nil))
}
