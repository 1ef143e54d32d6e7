package services

import (
	"context"
	"log"
	"os"
	"sync/atomic"
	"time"

	"campus-rag/internal/models"
	"campus-rag/internal/repositories"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/mock"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) Model() string {
	return "test-embedding-model"
}

type MockVectorRepository struct {
	mock.Mock
}

func (m *MockVectorRepository) CreateCollection(ctx context.Context, metadata map[string]interface{}) error {
	args := m.Called(ctx, metadata)
	return args.Error(0)
}

func (m *MockVectorRepository) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]*repositories.SearchResult, error) {
	args := m.Called(ctx, queryEmbedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.SearchResult), args.Error(1)
}

func (m *MockVectorRepository) Upsert(ctx context.Context, records []*repositories.Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockVectorRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorRepository) CollectionName() string {
	return "test-collection"
}

func (m *MockVectorRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVectorRepository) Close() error {
	return nil
}

type MockChatBackend struct {
	mock.Mock
}

func (m *MockChatBackend) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string) models.SearchToolResult {
	args := m.Called(ctx, query)
	return args.Get(0).(models.SearchToolResult)
}

// stubRuntime hands out fixed components and counts calls
type stubRuntime struct {
	rc    *RuntimeComponents
	err   error
	calls int32
}

func (s *stubRuntime) Get(ctx context.Context) (*RuntimeComponents, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.rc, s.err
}

// ============================================================================
// Helpers
// ============================================================================

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[TEST] ", log.LstdFlags)
}

func textReply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}
}

func toolCallReply(id, name, arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       id,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: name, Arguments: arguments},
				}},
			},
		}},
	}
}

// toolChoiceIs matches requests by their ToolChoice value
func toolChoiceIs(choice interface{}) interface{} {
	return mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.ToolChoice == choice
	})
}

func fastOrchestratorConfig() OrchestratorConfig {
	cfg := DefaultOrchestratorConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}
