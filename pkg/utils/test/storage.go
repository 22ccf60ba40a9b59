package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
)

// FailingDriver wraps an in-memory driver and fails AppendMessage for
// messages with a matching role.
type FailingDriver struct {
	*inmemory.Driver

	FailRole string
}

func NewFailingDriver(role string) *FailingDriver {
	return &FailingDriver{Driver: inmemory.NewDriver(), FailRole: role}
}

func (f *FailingDriver) AppendMessage(ctx context.Context, msg *storage.Message) error {
	if msg != nil && msg.Role == f.FailRole {
		return errors.New("mock storage failure")
	}
	return f.Driver.AppendMessage(ctx, msg)
}
