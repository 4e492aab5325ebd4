package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := WithCode(CodeStoreUnavailable, "db down")
	wrapped := Wrap(base, "load relationships")

	assert.Equal(t, CodeStoreUnavailable, GetCode(wrapped))
	assert.Equal(t, "load relationships: db down", wrapped.Error())
	assert.True(t, HasCode(fmt.Errorf("outer: %w", wrapped), CodeStoreUnavailable))
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := WithCode(CodePassInProgress, "pass in progress")
	err := Wrap(WithCode(CodePassInProgress, "another"), "trigger")

	assert.True(t, Is(err, sentinel))
	assert.False(t, Is(WithCode(CodeNotFound, "x"), sentinel))
	assert.False(t, Is(New("plain"), New("plain")))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, WrapCode(nil, CodeNotFound, "x"))
}

func TestCauseAndContext(t *testing.T) {
	root := stderrors.New("timeout")
	err := WrapCode(root, CodeChannelFailed, "push").WithContext("channel", "push")

	assert.Equal(t, root, Cause(err))
	assert.Equal(t, "channel", err.Context[0].Key)
	assert.Equal(t, "channel_failed", CodeName(GetCode(err)))
	assert.Equal(t, "unknown", CodeName(999))
}
