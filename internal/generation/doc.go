// Package generation abstracts the language model used by generation
// pipelines. Pipelines render a Prompt and hand it to a Generator; the Gemini
// adapter lives in platform/gemini, and LocalGenerator produces deterministic
// text for development and tests when no API key is configured.
package generation
