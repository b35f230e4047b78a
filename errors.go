package main

import "errors"

var (
	ErrEmptyQuery        = errors.New("empty query")
	ErrChatNotFound      = errors.New("chat not found")
	ErrFolderNotFound    = errors.New("folder not found")
	ErrInvalidRole       = errors.New("invalid message role")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrAssistantDisabled = errors.New("AI model not initialized, check the API key")
	ErrUnknownPage       = errors.New("unknown page")
	ErrUnknownTopic      = errors.New("unknown quick topic")
)
