// Package relay provides the client side of the chat relay API. It translates
// caller actions into HTTP calls and transport outcomes into the typed error
// taxonomy the UI layers surface to users: AuthError, ServerError,
// NetworkError, and RequestError. Every call is a single best-effort attempt;
// nothing is retried.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/sachiverma0/policychat/internal/models"
)

// DefaultBaseURL is used when neither the constructor nor the environment
// names a server address.
const DefaultBaseURL = "http://localhost:5000"

// File is one named payload of a multipart upload.
type File struct {
	Name string
	Data []byte
}

// Client talks to a chat relay server. The auth token is passed explicitly at
// construction rather than read from ambient state; when empty, requests are
// sent unauthenticated and the server decides whether to reject them.
type Client struct {
	baseURL string
	token   string

	httpClient *http.Client
}

// New creates a relay client. An empty baseURL falls back to the
// CHAT_API_BASE_URL environment variable, then to DefaultBaseURL.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("CHAT_API_BASE_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// ChatResult is the reply to one relayed message.
type ChatResult struct {
	Content        string
	Usage          models.Usage
	Model          string
	ConversationID string
}

// RAGSource identifies one document the answer was drawn from.
type RAGSource struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RAGResult is the reply to a retrieval-augmented query.
type RAGResult struct {
	Answer  string      `json:"answer"`
	Sources []RAGSource `json:"sources"`
}

// UploadResult reports what the server did with an upload batch.
type UploadResult struct {
	Status         string   `json:"status"`
	RowsProcessed  int      `json:"rowsProcessed"`
	RowsQueued     int      `json:"rowsQueued"`
	FilesProcessed int      `json:"filesProcessed"`
	IDs            []string `json:"ids"`
}

// FileListing reports the names of previously persisted uploads.
type FileListing struct {
	CSVFiles    []string `json:"csvFiles"`
	PolicyFiles []string `json:"policyFiles"`
}

type chatRequest struct {
	Message             string           `json:"message"`
	ConversationHistory []historyMessage `json:"conversationHistory"`
}

type historyMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

type chatResponse struct {
	Message        string       `json:"message"`
	Usage          models.Usage `json:"usage"`
	Model          string       `json:"model"`
	ConversationID string       `json:"conversationId"`
}

// Send relays one user message together with the conversation so far.
// Error-flagged history entries are UI artifacts of earlier failures and are
// not forwarded.
func (c *Client) Send(ctx context.Context, message string, history []models.Message) (ChatResult, error) {
	req := chatRequest{Message: message}
	for _, msg := range history {
		if msg.IsError {
			continue
		}
		req.ConversationHistory = append(req.ConversationHistory, historyMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "/api/chat", req, &resp); err != nil {
		return ChatResult{}, err
	}

	return ChatResult{
		Content:        resp.Message,
		Usage:          resp.Usage,
		Model:          resp.Model,
		ConversationID: resp.ConversationID,
	}, nil
}

// RAGQuery asks a question answered from ingested documents.
func (c *Client) RAGQuery(ctx context.Context, question string) (RAGResult, error) {
	var resp RAGResult
	err := c.postJSON(ctx, "/api/rag-query", map[string]string{"question": question}, &resp)
	return resp, err
}

// UploadTabular submits the staged tabular batch in one multipart request,
// every file under the repeated "file" field.
func (c *Client) UploadTabular(ctx context.Context, files ...File) (UploadResult, error) {
	return c.upload(ctx, "/api/upload-excel-direct", "file", files)
}

// UploadPolicyDocuments submits the staged policy batch in one multipart
// request, every file under the repeated "files" field.
func (c *Client) UploadPolicyDocuments(ctx context.Context, files ...File) (UploadResult, error) {
	return c.upload(ctx, "/api/upload-policy-documents", "files", files)
}

// UploadedFiles fetches the server's record of previously persisted uploads.
func (c *Client) UploadedFiles(ctx context.Context) (FileListing, error) {
	var resp FileListing
	err := c.do(ctx, http.MethodGet, "/api/get-uploaded-files", "", nil, &resp)
	return resp, err
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

func (c *Client) upload(ctx context.Context, path, field string, files []File) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.Name)
		if err != nil {
			return UploadResult{}, &RequestError{Err: err}
		}
		if _, err := part.Write(f.Data); err != nil {
			return UploadResult{}, &RequestError{Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, &RequestError{Err: err}
	}

	var resp UploadResult
	err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &body, &resp)
	return resp, err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &RequestError{Err: err}
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &RequestError{Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &ServerError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Err: fmt.Errorf("error decoding response: %w", err)}
	}
	return nil
}
