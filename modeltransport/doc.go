// Package modeltransport abstracts the streaming connection to a model
// provider behind a single polymorphic capability: stream fragments,
// optionally surface native structured tool calls on a side channel, and
// cancel mid-flight.
//
// Two concrete transports are provided. OpenAITransport speaks to any
// OpenAI-compatible endpoint and emits native tool-call events;
// LangchainTransport drives langchaingo-backed models (ollama and
// friends) that only produce plain text. The engine consuming a
// Transport never branches on provider identity and works whether or not
// native tool-call events are ever emitted.
package modeltransport
