package modeltransport

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OpenAITransport streams completions from an OpenAI-compatible endpoint
// and surfaces native tool calls on the side channel.
type OpenAITransport struct {
	client *openai.Client
}

// NewOpenAITransport creates a transport for the given API key. A
// non-empty baseURL points it at any OpenAI-compatible server.
func NewOpenAITransport(apiKey, baseURL string) *OpenAITransport {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAITransport{client: openai.NewClientWithConfig(cfg)}
}

// NewOpenAITransportWithClient wraps an existing client.
func NewOpenAITransportWithClient(client *openai.Client) *OpenAITransport {
	return &OpenAITransport{client: client}
}

func (t *OpenAITransport) Name() string { return "openai" }

// Stream opens a streaming chat completion. Text deltas flow to the
// fragment channel as they arrive; tool-call deltas are merged by index
// and emitted once the provider finishes the response.
func (t *OpenAITransport) Stream(ctx context.Context, req Request) (Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: buildMessages(req),
		Tools:    buildTools(req.Tools),
	}

	upstream, err := t.client.CreateChatCompletionStream(streamCtx, chatReq)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "openai stream request")
	}

	s := newEventStream(cancel)
	go func() {
		defer upstream.Close()
		merger := newToolCallMerger()
		for {
			resp, err := upstream.Recv()
			if errors.Is(err, io.EOF) {
				for _, call := range merger.calls() {
					if !s.emitToolCall(streamCtx, call) {
						break
					}
				}
				s.finish(nil)
				return
			}
			if err != nil {
				if streamCtx.Err() != nil {
					s.finish(streamCtx.Err())
					return
				}
				log.Error().Err(err).Msg("openai stream receive failed")
				s.finish(errors.Wrap(err, "openai stream receive"))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				if !s.emitFragment(streamCtx, delta.Content) {
					s.finish(streamCtx.Err())
					return
				}
			}
			for _, tc := range delta.ToolCalls {
				merger.add(tc)
			}
		}
	}()
	return s, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
	return msgs
}

func buildTools(specs []ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return tools
}

// toolCallMerger accumulates streamed tool-call deltas, which arrive as
// partial name/argument chunks keyed by index.
type toolCallMerger struct {
	pending map[int]*pendingCall
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallMerger() *toolCallMerger {
	return &toolCallMerger{pending: make(map[int]*pendingCall)}
}

func (m *toolCallMerger) add(delta openai.ToolCall) {
	idx := 0
	if delta.Index != nil {
		idx = *delta.Index
	}
	p, ok := m.pending[idx]
	if !ok {
		p = &pendingCall{}
		m.pending[idx] = p
	}
	if delta.ID != "" {
		p.id = delta.ID
	}
	if delta.Function.Name != "" {
		p.name += delta.Function.Name
	}
	p.args.WriteString(delta.Function.Arguments)
}

func (m *toolCallMerger) calls() []ToolCall {
	indexes := make([]int, 0, len(m.pending))
	for idx := range m.pending {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		p := m.pending[idx]
		args := p.args.String()
		if args == "" {
			args = "{}"
		}
		out = append(out, ToolCall{
			Index:     idx,
			ID:        p.id,
			Name:      p.name,
			Arguments: json.RawMessage(args),
		})
	}
	return out
}
