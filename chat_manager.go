package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	stateVersion     = 1
	defaultFolder    = "預設"
	defaultChatTitle = "新對話"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// QuickTopics seed a new chat with a ready-made first question.
var QuickTopics = []string{
	"請介紹一下最新的AI技術趨勢",
	"幫我分析目前的股市情況",
	"我想學習Python程式設計",
	"給我一些投資理財的建議",
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat is a titled, ordered list of messages.
type Chat struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (c *Chat) clone() Chat {
	out := *c
	out.Messages = append([]ChatMessage(nil), c.Messages...)
	return out
}

// chatState is the persisted document.
type chatState struct {
	Version  int                 `json:"version"`
	Folders  map[string][]string `json:"folders"`
	Chats    map[string]*Chat    `json:"chats"`
	Settings map[string]any      `json:"settings"`
}

// DefaultSettings are merged under whatever the state file holds.
func DefaultSettings() map[string]any {
	return map[string]any{
		"personality":     "友善",
		"response_length": 3,
		"auto_save":       true,
		"notifications":   true,
	}
}

// ChatManager owns every conversation, the folder index and the settings
// map. When auto_save is on, each mutation rewrites the state file; write
// failures are logged and otherwise ignored so the in-memory state stays
// authoritative.
type ChatManager struct {
	mu    sync.Mutex
	path  string
	state chatState
	log   *slog.Logger
	now   func() time.Time
}

// NewChatManager loads the state file at path. A missing or unreadable file
// starts an empty store. An empty path disables persistence.
func NewChatManager(path string, log *slog.Logger) *ChatManager {
	if log == nil {
		log = discardLogger()
	}
	m := &ChatManager{
		path: path,
		log:  log,
		now:  time.Now,
	}
	m.state = m.load()
	return m
}

func newChatState() chatState {
	return chatState{
		Version:  stateVersion,
		Folders:  map[string][]string{defaultFolder: {}},
		Chats:    map[string]*Chat{},
		Settings: DefaultSettings(),
	}
}

func (m *ChatManager) load() chatState {
	st := newChatState()
	if m.path == "" {
		return st
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn("reading chat state", "path", m.path, "error", err)
		}
		return st
	}

	var loaded chatState
	if err := json.Unmarshal(data, &loaded); err != nil {
		m.log.Warn("parsing chat state, starting empty", "path", m.path, "error", err)
		return st
	}

	for id, chat := range loaded.Chats {
		if chat == nil {
			continue
		}
		if chat.ID == "" {
			chat.ID = id
		}
		st.Chats[id] = chat
	}
	for k, v := range loaded.Settings {
		st.Settings[k] = v
	}
	st.Folders = repairFolders(loaded.Folders, st.Chats)
	return st
}

// repairFolders keeps every chat in exactly one folder: ids of missing chats
// are dropped, a chat listed twice stays in the first folder seen (folders
// in name order), and unfiled chats go to the default folder.
func repairFolders(folders map[string][]string, chats map[string]*Chat) map[string][]string {
	out := map[string][]string{defaultFolder: {}}
	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)

	filed := make(map[string]bool, len(chats))
	for _, name := range names {
		ids := []string{}
		for _, id := range folders[name] {
			if chats[id] == nil || filed[id] {
				continue
			}
			filed[id] = true
			ids = append(ids, id)
		}
		out[name] = ids
	}

	var orphans []*Chat
	for id, c := range chats {
		if !filed[id] {
			orphans = append(orphans, c)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		if !orphans[i].CreatedAt.Equal(orphans[j].CreatedAt) {
			return orphans[i].CreatedAt.Before(orphans[j].CreatedAt)
		}
		return orphans[i].ID < orphans[j].ID
	})
	for _, c := range orphans {
		out[defaultFolder] = append(out[defaultFolder], c.ID)
	}
	return out
}

// Create starts an empty conversation in the default folder.
func (m *ChatManager) Create(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultChatTitle
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := uuid.NewString()
	m.state.Chats[id] = &Chat{
		ID:        id,
		Title:     title,
		Messages:  []ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.state.Folders[defaultFolder] = append(m.state.Folders[defaultFolder], id)
	m.autoSaveLocked()
	return id
}

// StartQuickChat creates "快速對話 n" holding quick topic n (1-based) as
// its first user message.
func (m *ChatManager) StartQuickChat(n int) (string, error) {
	if n < 1 || n > len(QuickTopics) {
		return "", fmt.Errorf("%w: %d", ErrUnknownTopic, n)
	}
	id := m.Create(fmt.Sprintf("快速對話 %d", n))
	if err := m.AppendMessage(id, RoleUser, QuickTopics[n-1]); err != nil {
		return "", err
	}
	return id, nil
}

// AppendMessage adds one message to the end of a conversation.
func (m *ChatManager) AppendMessage(id, role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.state.Chats[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	chat.Messages = append(chat.Messages, ChatMessage{Role: role, Content: content})
	chat.UpdatedAt = m.now()
	m.autoSaveLocked()
	return nil
}

// ResetMessages empties a conversation but keeps it.
func (m *ChatManager) ResetMessages(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.state.Chats[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	chat.Messages = []ChatMessage{}
	chat.UpdatedAt = m.now()
	m.autoSaveLocked()
	return nil
}

// Delete removes the chat and purges its id from every folder.
func (m *ChatManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.Chats[id]; !ok {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	delete(m.state.Chats, id)
	m.removeFromFoldersLocked(id)
	m.autoSaveLocked()
	return nil
}

func (m *ChatManager) removeFromFoldersLocked(id string) {
	for name, ids := range m.state.Folders {
		kept := ids[:0]
		for _, cid := range ids {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		m.state.Folders[name] = kept
	}
}

// Get returns a copy of one chat.
func (m *ChatManager) Get(id string) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.state.Chats[id]
	if !ok {
		return Chat{}, fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	return chat.clone(), nil
}

// List returns copies of all chats, most recently updated first.
func (m *ChatManager) List() []Chat {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Chat, 0, len(m.state.Chats))
	for _, c := range m.state.Chats {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count is the number of stored chats.
func (m *ChatManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.Chats)
}

// Search returns ids of chats whose title or any message contains keyword,
// case-insensitively, most recently updated first.
func (m *ChatManager) Search(keyword string) ([]string, error) {
	q := strings.ToLower(strings.TrimSpace(keyword))
	if q == "" {
		return nil, ErrEmptyQuery
	}

	ids := []string{}
	for _, c := range m.List() {
		if chatContains(c, q) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func chatContains(c Chat, q string) bool {
	if strings.Contains(strings.ToLower(c.Title), q) {
		return true
	}
	for _, msg := range c.Messages {
		if strings.Contains(strings.ToLower(msg.Content), q) {
			return true
		}
	}
	return false
}

// Folders returns a copy of the folder index.
func (m *ChatManager) Folders() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]string, len(m.state.Folders))
	for name, ids := range m.state.Folders {
		out[name] = append([]string{}, ids...)
	}
	return out
}

// CreateFolder adds an empty folder; existing folders are left alone.
func (m *ChatManager) CreateFolder(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: folder name", ErrEmptyQuery)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.Folders[name]; ok {
		return nil
	}
	m.state.Folders[name] = []string{}
	m.autoSaveLocked()
	return nil
}

// MoveToFolder files a chat under exactly one folder.
func (m *ChatManager) MoveToFolder(id, folder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.Chats[id]; !ok {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	if _, ok := m.state.Folders[folder]; !ok {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
	}
	m.removeFromFoldersLocked(id)
	m.state.Folders[folder] = append(m.state.Folders[folder], id)
	m.autoSaveLocked()
	return nil
}

// Settings returns a copy of the settings map.
func (m *ChatManager) Settings() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]any, len(m.state.Settings))
	for k, v := range m.state.Settings {
		out[k] = v
	}
	return out
}

// UpdateSettings merges partial into the existing settings.
func (m *ChatManager) UpdateSettings(partial map[string]any) map[string]any {
	m.mu.Lock()
	for k, v := range partial {
		m.state.Settings[k] = v
	}
	m.autoSaveLocked()
	m.mu.Unlock()
	return m.Settings()
}

// ClearAll drops every chat and folder and always writes the result.
func (m *ChatManager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Chats = map[string]*Chat{}
	m.state.Folders = map[string][]string{defaultFolder: {}}
	return m.saveLocked()
}

// Save writes the state file regardless of the auto_save setting.
func (m *ChatManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *ChatManager) autoSaveEnabledLocked() bool {
	v, ok := m.state.Settings["auto_save"].(bool)
	return !ok || v
}

func (m *ChatManager) autoSaveLocked() {
	if !m.autoSaveEnabledLocked() {
		return
	}
	if err := m.saveLocked(); err != nil {
		m.log.Warn("saving chat state", "path", m.path, "error", err)
	}
}

func (m *ChatManager) saveLocked() error {
	if m.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".chat-state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}
