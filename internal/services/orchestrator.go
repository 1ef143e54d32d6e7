package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sashabaranov/go-openai"
)

// ErrGenerationUnavailable is returned when the generation backend cannot be
// reached after retries
var ErrGenerationUnavailable = errors.New("generation backend unavailable")

// FallbackAnswer is returned when the backend produces no usable text
const FallbackAnswer = "Maaf, saya tidak dapat menjawab."

const (
	DefaultGenerationModel = "gemini-1.5-flash"
	DefaultMaxTokens       = 256
	DefaultTemperature     = 0.3
	DefaultTopP            = 0.9
	DefaultMaxToolRounds   = 3
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 500 * time.Millisecond
)

// ChatBackend is the chat-completions capability; *openai.Client satisfies it
type ChatBackend interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ToolFunc executes a tool call. arguments is the raw JSON the model sent;
// the return value is marshaled to JSON and handed back to the model.
type ToolFunc func(ctx context.Context, arguments string) interface{}

// OrchestratorConfig holds generation parameters
type OrchestratorConfig struct {
	Model         string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	MaxToolRounds int
	RetryAttempts uint
	RetryDelay    time.Duration
}

// DefaultOrchestratorConfig returns the production generation parameters
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Model:         DefaultGenerationModel,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
		TopP:          DefaultTopP,
		MaxToolRounds: DefaultMaxToolRounds,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
	}
}

type registeredTool struct {
	definition openai.FunctionDefinition
	fn         ToolFunc
}

// AnswerOrchestrator drives a bounded generate / tool-call loop
type AnswerOrchestrator struct {
	backend ChatBackend
	tools   map[string]registeredTool
	config  OrchestratorConfig
	logger  *log.Logger
}

// NewAnswerOrchestrator creates an orchestrator with an empty tool registry
func NewAnswerOrchestrator(backend ChatBackend, config OrchestratorConfig, logger *log.Logger) *AnswerOrchestrator {
	defaults := DefaultOrchestratorConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = defaults.MaxToolRounds
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}

	return &AnswerOrchestrator{
		backend: backend,
		tools:   make(map[string]registeredTool),
		config:  config,
		logger:  logger,
	}
}

// RegisterTool makes a function available to the model when external
// search is allowed
func (o *AnswerOrchestrator) RegisterTool(definition openai.FunctionDefinition, fn ToolFunc) {
	o.tools[definition.Name] = registeredTool{definition: definition, fn: fn}
}

type orchestratorState int

const (
	stateInit orchestratorState = iota
	stateGenerate
	stateCheckToolCall
	stateToolExec
	stateDone
)

// Answer produces the final answer text. Tools are offered only when
// allowExternalSearch is set. After MaxToolRounds tool round trips one more
// generation is forced with tool use disabled.
func (o *AnswerOrchestrator) Answer(ctx context.Context, systemPrompt, userPrompt string, allowExternalSearch bool) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	var (
		offered map[string]registeredTool
		tools   []openai.Tool
		reply   openai.ChatCompletionMessage
		answer  string
		rounds  int
	)

	for state := stateInit; state != stateDone; {
		switch state {
		case stateInit:
			offered, tools = o.offeredTools(allowExternalSearch)
			state = stateGenerate

		case stateGenerate:
			msg, err := o.generate(ctx, messages, tools, false)
			if err != nil {
				return "", err
			}
			reply = msg
			state = stateCheckToolCall

		case stateCheckToolCall:
			if len(reply.ToolCalls) == 0 {
				answer = reply.Content
				state = stateDone
				break
			}
			if rounds >= o.config.MaxToolRounds {
				o.logger.Printf("Tool round limit (%d) reached, forcing a final answer", o.config.MaxToolRounds)
				msg, err := o.generate(ctx, messages, tools, true)
				if err != nil {
					return "", err
				}
				answer = msg.Content
				state = stateDone
				break
			}
			state = stateToolExec

		case stateToolExec:
			rounds++
			messages = append(messages, reply)
			for _, call := range reply.ToolCalls {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    o.executeTool(ctx, offered, call),
					Name:       call.Function.Name,
					ToolCallID: call.ID,
				})
			}
			state = stateGenerate
		}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return FallbackAnswer, nil
	}
	return answer, nil
}

func (o *AnswerOrchestrator) offeredTools(allowExternalSearch bool) (map[string]registeredTool, []openai.Tool) {
	if !allowExternalSearch || len(o.tools) == 0 {
		return map[string]registeredTool{}, nil
	}

	tools := make([]openai.Tool, 0, len(o.tools))
	for _, t := range o.tools {
		def := t.definition
		tools = append(tools, openai.Tool{Type: openai.ToolTypeFunction, Function: &def})
	}
	return o.tools, tools
}

// executeTool runs one call and returns its JSON result. Unknown or
// unoffered functions get a structured error instead of failing the turn.
func (o *AnswerOrchestrator) executeTool(ctx context.Context, offered map[string]registeredTool, call openai.ToolCall) string {
	var result interface{} = map[string]string{"error": "function not available"}

	if tool, ok := offered[call.Function.Name]; ok {
		o.logger.Printf("Executing tool %s(%s)", call.Function.Name, call.Function.Arguments)
		result = tool.fn(ctx, call.Function.Arguments)
	} else {
		o.logger.Printf("Model requested unavailable tool %q", call.Function.Name)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return `{"error":"tool result could not be encoded"}`
	}
	return string(data)
}

// generate sends one chat completion with retries. forceText disables tool
// use for this call.
func (o *AnswerOrchestrator) generate(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool, forceText bool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.config.Model,
		Messages:    messages,
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
		TopP:        o.config.TopP,
	}
	if len(tools) > 0 {
		req.Tools = tools
		if forceText {
			req.ToolChoice = "none"
		}
	}

	var msg openai.ChatCompletionMessage
	startTime := time.Now()

	err := retry.Do(
		func() error {
			resp, err := o.backend.CreateChatCompletion(ctx, req)
			if err != nil {
				return err
			}
			if len(resp.Choices) > 0 {
				msg = resp.Choices[0].Message
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(o.config.RetryAttempts),
		retry.Delay(o.config.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableGenerationError),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Printf("Generation attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		o.logger.Printf("Generation failed after %.2fms: %v", time.Since(startTime).Seconds()*1000, err)
		return msg, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	o.logger.Printf("Generation completed in %.2fms (tool calls: %d)",
		time.Since(startTime).Seconds()*1000, len(msg.ToolCalls))
	return msg, nil
}

// isRetryableGenerationError retries transport failures, throttling and 5xx
func isRetryableGenerationError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return true
	}

	return status == 0 ||
		status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}
