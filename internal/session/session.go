// Package session holds the client-side state behind a chat view: the
// ordered conversation, the in-flight send guard, and the two upload staging
// areas. State changes are expressed as explicit commands applied to the
// session, which keeps every transition testable without a UI.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sachiverma0/policychat/internal/models"
	"github.com/sachiverma0/policychat/internal/relay"
)

// ErrBusy is returned when a send is attempted while another is in flight.
// The attempt mutates nothing; sends are not queued.
var ErrBusy = errors.New("a send is already in progress")

// ErrEmptyMessage is returned when there is nothing to send.
var ErrEmptyMessage = errors.New("message is empty")

// Session owns the conversation sequence and the upload staging areas. All
// mutation goes through its own methods; there are no external writers.
type Session struct {
	client *relay.Client

	mu       sync.Mutex
	messages []models.Message
	loading  bool
	tabular  staging
	policy   staging
}

// New creates a session backed by the given relay client.
func New(client *relay.Client) *Session {
	return &Session{
		client:  client,
		tabular: staging{accept: isCSV},
		policy:  staging{accept: func(string) bool { return true }},
	}
}

// Send relays a message and appends the outcome to the conversation: the
// user's entry first, then either the assistant reply or an error-flagged
// entry standing in for it. The user's entry is never rolled back. While a
// send is in flight further sends are rejected without touching any state.
func (s *Session) Send(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.loading = true

	history := make([]models.Message, len(s.messages))
	copy(history, s.messages)

	s.messages = append(s.messages, models.Message{
		ID:        messageID(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	res, err := s.client.Send(ctx, text, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		s.messages = append(s.messages, models.Message{
			ID:        messageID(),
			Role:      models.RoleAssistant,
			Content:   errorText(err),
			Timestamp: time.Now(),
			IsError:   true,
		})
		return err
	}

	s.messages = append(s.messages, models.Message{
		ID:        messageID(),
		Role:      models.RoleAssistant,
		Content:   res.Content,
		Timestamp: time.Now(),
	})
	return nil
}

// Clear discards the whole conversation.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Messages returns a copy of the conversation in insertion order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Loading reports whether a send is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// StageTabular adds a file to the tabular staging area. Only .csv files are
// accepted; anything else leaves the staged list unchanged and returns false.
func (s *Session) StageTabular(f relay.File) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabular.stage(f)
}

// StagePolicy adds a file to the policy staging area. Any file type is
// accepted.
func (s *Session) StagePolicy(f relay.File) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.stage(f)
}

// StagedTabular returns the names of files staged for tabular upload.
func (s *Session) StagedTabular() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabular.stagedNames()
}

// UploadedTabular returns the names of tabular files confirmed uploaded.
func (s *Session) UploadedTabular() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabular.uploadedNames()
}

// StagedPolicy returns the names of files staged for policy upload.
func (s *Session) StagedPolicy() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.stagedNames()
}

// UploadedPolicy returns the names of policy files confirmed uploaded.
func (s *Session) UploadedPolicy() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.uploadedNames()
}

// CommitTabular submits the whole tabular staging area in one request. On
// success the staged list is swapped wholesale into the uploaded list; on
// failure both lists are left untouched.
func (s *Session) CommitTabular(ctx context.Context) (relay.UploadResult, error) {
	s.mu.Lock()
	files := s.tabular.stagedFiles()
	s.mu.Unlock()

	if len(files) == 0 {
		return relay.UploadResult{}, nil
	}

	res, err := s.client.UploadTabular(ctx, files...)
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	s.tabular.commit()
	s.mu.Unlock()
	return res, nil
}

// CommitPolicy submits the whole policy staging area in one request, with
// the same swap-on-success semantics as CommitTabular.
func (s *Session) CommitPolicy(ctx context.Context) (relay.UploadResult, error) {
	s.mu.Lock()
	files := s.policy.stagedFiles()
	s.mu.Unlock()

	if len(files) == 0 {
		return relay.UploadResult{}, nil
	}

	res, err := s.client.UploadPolicyDocuments(ctx, files...)
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	s.policy.commit()
	s.mu.Unlock()
	return res, nil
}

// Message ids mirror the original UI's wall-clock scheme: best-effort unique,
// not guaranteed under rapid succession.
func messageID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func errorText(err error) string {
	var authErr *relay.AuthError
	var srvErr *relay.ServerError
	var netErr *relay.NetworkError

	switch {
	case errors.As(err, &authErr):
		return "Authentication failed. Please sign in again."
	case errors.As(err, &srvErr):
		if srvErr.Message != "" {
			return srvErr.Message
		}
		return "The server reported an error. Please try again."
	case errors.As(err, &netErr):
		return "No response from server. Please check your connection."
	default:
		return "The request could not be sent. Please try again."
	}
}
