// Package model defines the provider-agnostic boundary to the language
// models that back delegate agents.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Hide vendor SDKs (OpenAI, Anthropic) behind a single interface
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers implement Model so policies remain decoupled from vendor SDKs.
package model
