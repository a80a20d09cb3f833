package session

import (
	"context"

	"github.com/sachiverma0/policychat/internal/relay"
)

// Target selects which staging area a command addresses.
type Target int

const (
	// TargetTabular addresses the spreadsheet staging area.
	TargetTabular Target = iota
	// TargetPolicy addresses the policy-document staging area.
	TargetPolicy
)

// Command is a single state transition a UI can dispatch against a session.
type Command interface {
	apply(ctx context.Context, s *Session) error
}

// Dispatch applies one command to the session.
func (s *Session) Dispatch(ctx context.Context, cmd Command) error {
	return cmd.apply(ctx, s)
}

// SendMessage relays a message and records the exchange.
type SendMessage struct {
	Text string
}

func (c SendMessage) apply(ctx context.Context, s *Session) error {
	return s.Send(ctx, c.Text)
}

// ClearChat discards the conversation.
type ClearChat struct{}

func (ClearChat) apply(_ context.Context, s *Session) error {
	s.Clear()
	return nil
}

// StageFile adds a file to a staging area, subject to that area's type
// filter. A rejected file is not an error; the staged list simply does not
// change.
type StageFile struct {
	Target Target
	Name   string
	Data   []byte
}

func (c StageFile) apply(_ context.Context, s *Session) error {
	f := relay.File{Name: c.Name, Data: c.Data}
	if c.Target == TargetPolicy {
		s.StagePolicy(f)
	} else {
		s.StageTabular(f)
	}
	return nil
}

// CommitUpload submits a staging area's whole batch.
type CommitUpload struct {
	Target Target
}

func (c CommitUpload) apply(ctx context.Context, s *Session) error {
	var err error
	if c.Target == TargetPolicy {
		_, err = s.CommitPolicy(ctx)
	} else {
		_, err = s.CommitTabular(ctx)
	}
	return err
}
