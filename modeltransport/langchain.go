package modeltransport

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// LangchainTransport drives any langchaingo-backed model. These models
// speak plain text only; the native tool-call channel never emits, and
// the consumer parses directives out of the text stream instead.
type LangchainTransport struct {
	model llms.Model
	name  string
}

// NewLangchainTransport wraps an existing langchaingo model.
func NewLangchainTransport(model llms.Model, name string) *LangchainTransport {
	if name == "" {
		name = "langchain"
	}
	return &LangchainTransport{model: model, name: name}
}

// NewOllamaTransport creates a transport for a local ollama server.
func NewOllamaTransport(serverURL, model string) (*LangchainTransport, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "ollama client")
	}
	return &LangchainTransport{model: llm, name: "ollama"}, nil
}

func (t *LangchainTransport) Name() string { return t.name }

// Stream runs GenerateContent with a streaming callback. Providers that
// ignore the callback still work: the full completion is emitted as a
// single trailing fragment.
func (t *LangchainTransport) Stream(ctx context.Context, req Request) (Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	s := newEventStream(cancel)

	var content []llms.MessageContent
	if req.System != "" {
		content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	go func() {
		streamed := false
		resp, err := t.model.GenerateContent(streamCtx, content,
			llms.WithStreamingFunc(func(cbCtx context.Context, chunk []byte) error {
				streamed = true
				if !s.emitFragment(streamCtx, string(chunk)) {
					return streamCtx.Err()
				}
				return nil
			}),
		)
		if err != nil {
			if streamCtx.Err() != nil {
				s.finish(streamCtx.Err())
				return
			}
			s.finish(errors.Wrap(err, "langchain generate"))
			return
		}
		if !streamed && len(resp.Choices) > 0 {
			s.emitFragment(streamCtx, resp.Choices[0].Content)
		}
		s.finish(nil)
	}()
	return s, nil
}
