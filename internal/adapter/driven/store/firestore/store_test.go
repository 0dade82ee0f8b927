package firestore

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestConvertTransforms(t *testing.T) {
	in := map[string]any{
		"status":  "ended",
		"endedAt": port.ServerTimestamp,
		"bedtime": port.DeleteField,
		"approvals": map[string]any{
			"apps": port.ArrayUnion("calendar"),
		},
		"deviceIds": port.ArrayRemove("tablet-1"),
	}
	out := convertMap(in)

	assert.Equal(t, "ended", out["status"])
	assert.Equal(t, firestore.ServerTimestamp, out["endedAt"])
	assert.Equal(t, firestore.Delete, out["bedtime"])
	assert.Equal(t, firestore.ArrayUnion("calendar"), out["approvals"].(map[string]any)["apps"])
	assert.Equal(t, firestore.ArrayRemove("tablet-1"), out["deviceIds"])

	_, isTransform := in["endedAt"].(port.Transform)
	assert.True(t, isTransform, "input must not be modified")
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("users/kid", nil))

	err := mapError("users/kid", status.Error(codes.NotFound, "no such document"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "users/kid")

	err = mapError("users/kid", status.Error(codes.Unavailable, "try later"))
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
}

func TestStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.False(t, stopped(ctx, status.Error(codes.Internal, "boom")))
	assert.True(t, stopped(ctx, iterator.Done))
	assert.True(t, stopped(ctx, status.Error(codes.Canceled, "cancelled")))
	cancel()
	assert.True(t, stopped(ctx, status.Error(codes.Internal, "boom")))
}

func TestChangeKind(t *testing.T) {
	assert.Equal(t, port.ChangeAdded, changeKind(firestore.DocumentAdded))
	assert.Equal(t, port.ChangeModified, changeKind(firestore.DocumentModified))
	assert.Equal(t, port.ChangeRemoved, changeKind(firestore.DocumentRemoved))
}
