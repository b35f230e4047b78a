package main

type CreateChatRequest struct {
	Title string `json:"title"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessageResponse struct {
	ChatID string      `json:"chat_id"`
	Reply  ChatMessage `json:"reply"`
}

type MoveChatRequest struct {
	Folder string `json:"folder" binding:"required"`
}

type CreateFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

type ChatListResponse struct {
	Chats         []Chat              `json:"chats"`
	Folders       map[string][]string `json:"folders"`
	CurrentChatID string              `json:"current_chat_id"`
}

type SearchResponse struct {
	Query string   `json:"query"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

type AddStockRequest struct {
	Query string `json:"query" binding:"required"`
}

type SuggestResponse struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
	Count   int      `json:"count"`
}

type HistoryResponse struct {
	Symbol string          `json:"symbol"`
	Days   int             `json:"days"`
	Count  int             `json:"count"`
	Data   []QuoteSnapshot `json:"data"`
}

type NewsResponse struct {
	Items   []NewsItem `json:"items"`
	Count   int        `json:"count"`
	Warning string     `json:"warning,omitempty"`
}

type AnalyzeNewsRequest struct {
	Title   string `json:"title" binding:"required"`
	Summary string `json:"summary"`
}

type PageRequest struct {
	Page string `json:"page" binding:"required"`
}

type ClearDataRequest struct {
	Confirm bool `json:"confirm"`
}
