package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestChatManager(t *testing.T) (*ChatManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat_data.json")
	m := NewChatManager(path, nil)
	clock := &fakeClock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	m.now = func() time.Time {
		clock.Advance(time.Second)
		return clock.Now()
	}
	return m, path
}

func TestCreateDefaultsTitleAndFolder(t *testing.T) {
	m, _ := newTestChatManager(t)

	id := m.Create("  ")
	chat, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if chat.Title != defaultChatTitle {
		t.Errorf("Title = %q, want %q", chat.Title, defaultChatTitle)
	}
	if len(chat.Messages) != 0 {
		t.Errorf("len(Messages) = %d, want 0", len(chat.Messages))
	}
	if got := m.Folders()[defaultFolder]; !reflect.DeepEqual(got, []string{id}) {
		t.Errorf("default folder = %v, want [%s]", got, id)
	}

	other := m.Create("Trip")
	if other == id {
		t.Error("Create returned a duplicate id")
	}
}

func TestAppendMessage(t *testing.T) {
	m, _ := newTestChatManager(t)
	id := m.Create("t")

	if err := m.AppendMessage(id, RoleUser, "hi"); err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	if err := m.AppendMessage(id, RoleAssistant, "hello"); err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	chat, _ := m.Get(id)
	want := []ChatMessage{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}
	if !reflect.DeepEqual(chat.Messages, want) {
		t.Errorf("Messages = %+v, want %+v", chat.Messages, want)
	}
	if !chat.UpdatedAt.After(chat.CreatedAt) {
		t.Error("UpdatedAt not advanced by AppendMessage")
	}

	if err := m.AppendMessage(id, "system", "x"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("AppendMessage(system) error = %v, want ErrInvalidRole", err)
	}
	if err := m.AppendMessage("missing", RoleUser, "x"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("AppendMessage(missing) error = %v, want ErrChatNotFound", err)
	}
}

func TestDeleteRemovesFromSearchAndFolders(t *testing.T) {
	m, _ := newTestChatManager(t)
	id := m.Create("Python notes")
	keep := m.Create("Python later")
	if err := m.CreateFolder("work"); err != nil {
		t.Fatal(err)
	}
	if err := m.MoveToFolder(id, "work"); err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(id); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	ids, err := m.Search("python")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{keep}) {
		t.Errorf("Search after delete = %v, want [%s]", ids, keep)
	}
	for name, members := range m.Folders() {
		for _, cid := range members {
			if cid == id {
				t.Errorf("folder %q still lists deleted chat", name)
			}
		}
	}
	if _, err := m.Get(id); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrChatNotFound", err)
	}
	if err := m.Delete(id); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("second Delete error = %v, want ErrChatNotFound", err)
	}
}

func TestSearchMatchesMessagesCaseInsensitive(t *testing.T) {
	m, _ := newTestChatManager(t)
	first := m.Create("learning")
	m.AppendMessage(first, RoleUser, "I love Python")
	m.Create("unrelated")
	second := m.Create("PYTHON tips")

	ids, err := m.Search("python")
	if err != nil {
		t.Fatal(err)
	}
	// second was created after first's message was appended.
	want := []string{second, first}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Search(python) = %v, want %v", ids, want)
	}

	if _, err := m.Search(""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Search(\"\") error = %v, want ErrEmptyQuery", err)
	}
	ids, _ = m.Search("nothing-matches")
	if ids == nil || len(ids) != 0 {
		t.Errorf("Search(no match) = %#v, want empty slice", ids)
	}
}

func TestUpdateSettingsMerges(t *testing.T) {
	m, _ := newTestChatManager(t)

	got := m.UpdateSettings(map[string]any{"personality": "專業"})
	if got["personality"] != "專業" {
		t.Errorf("personality = %v, want 專業", got["personality"])
	}
	if got["response_length"] != 3 {
		t.Errorf("response_length = %v, want 3", got["response_length"])
	}
	if got["auto_save"] != true || got["notifications"] != true {
		t.Errorf("untouched keys changed: %v", got)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	m, path := newTestChatManager(t)
	id := m.Create("saved")
	m.AppendMessage(id, RoleUser, "remember me")
	m.UpdateSettings(map[string]any{"personality": "幽默"})

	reloaded := NewChatManager(path, nil)
	chat, err := reloaded.Get(id)
	if err != nil {
		t.Fatalf("Get after reload returned error: %v", err)
	}
	if len(chat.Messages) != 1 || chat.Messages[0].Content != "remember me" {
		t.Errorf("Messages after reload = %+v", chat.Messages)
	}
	if reloaded.Settings()["personality"] != "幽默" {
		t.Errorf("personality after reload = %v", reloaded.Settings()["personality"])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state file is not JSON: %v", err)
	}
	for _, key := range []string{"version", "folders", "chats", "settings"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("state file missing %q", key)
		}
	}
}

func TestAutoSaveOff(t *testing.T) {
	m, path := newTestChatManager(t)
	m.UpdateSettings(map[string]any{"auto_save": false})
	before, _ := os.ReadFile(path)

	m.Create("not yet saved")
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("state file rewritten while auto_save is off")
	}

	if err := m.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if NewChatManager(path, nil).Count() != 1 {
		t.Error("explicit Save did not persist the chat")
	}
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The parent of the state path is a regular file, so every write fails.
	m := NewChatManager(filepath.Join(blocker, "chat_data.json"), nil)

	id := m.Create("in memory")
	if err := m.AppendMessage(id, RoleUser, "still here"); err != nil {
		t.Fatalf("AppendMessage returned error on failed save: %v", err)
	}
	if chat, err := m.Get(id); err != nil || len(chat.Messages) != 1 {
		t.Errorf("Get = %+v, %v; want chat with one message", chat, err)
	}
	if err := m.Save(); err == nil {
		t.Error("explicit Save returned nil error for unwritable path")
	}
}

func TestCorruptStateStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewChatManager(path, nil)
	if m.Count() != 0 {
		t.Errorf("Count = %d, want 0", m.Count())
	}
	if m.Settings()["personality"] != "友善" {
		t.Errorf("settings not defaulted: %v", m.Settings())
	}
}

func TestLoadRepairsFolderMembership(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_data.json")
	state := `{
  "folders": {
    "預設": ["a", "ghost"],
    "work": ["b", "a", "d"],
    "empty": null
  },
  "chats": {
    "a": {"id": "a", "title": "A", "created_at": "2024-06-01T00:00:00Z"},
    "b": {"id": "b", "title": "B", "created_at": "2024-06-02T00:00:00Z"},
    "c": {"id": "c", "title": "C", "created_at": "2024-06-03T00:00:00Z"},
    "d": null
  },
  "settings": {}
}`
	if err := os.WriteFile(path, []byte(state), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewChatManager(path, nil)
	want := map[string][]string{
		defaultFolder: {"c"},
		"work":        {"b", "a"},
		"empty":       {},
	}
	if got := m.Folders(); !reflect.DeepEqual(got, want) {
		t.Errorf("Folders = %v, want %v", got, want)
	}
	if m.Count() != 3 {
		t.Errorf("Count = %d, want 3", m.Count())
	}
	if _, err := m.Get("d"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("Get(d) error = %v, want ErrChatNotFound", err)
	}

	// A repaired state deletes cleanly from its single folder.
	if err := m.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if got := m.Folders()["work"]; !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("work after delete = %v, want [b]", got)
	}
}

func TestFoldersAndReset(t *testing.T) {
	m, _ := newTestChatManager(t)
	id := m.Create("x")
	m.AppendMessage(id, RoleUser, "hello")

	if err := m.MoveToFolder(id, "nope"); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("MoveToFolder(unknown) error = %v, want ErrFolderNotFound", err)
	}
	m.CreateFolder("work")
	if err := m.MoveToFolder(id, "work"); err != nil {
		t.Fatal(err)
	}
	folders := m.Folders()
	if len(folders[defaultFolder]) != 0 || !reflect.DeepEqual(folders["work"], []string{id}) {
		t.Errorf("folders = %v", folders)
	}

	if err := m.ResetMessages(id); err != nil {
		t.Fatal(err)
	}
	if chat, _ := m.Get(id); len(chat.Messages) != 0 {
		t.Errorf("Messages after reset = %+v", chat.Messages)
	}
}

func TestClearAllKeepsSettings(t *testing.T) {
	m, path := newTestChatManager(t)
	m.UpdateSettings(map[string]any{"auto_save": false, "personality": "簡潔"})
	m.Create("a")
	m.CreateFolder("work")

	if err := m.ClearAll(); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}
	reloaded := NewChatManager(path, nil)
	if reloaded.Count() != 0 {
		t.Errorf("Count after ClearAll = %d", reloaded.Count())
	}
	if _, ok := reloaded.Folders()["work"]; ok {
		t.Error("custom folder survived ClearAll")
	}
	if reloaded.Settings()["personality"] != "簡潔" {
		t.Errorf("settings lost on ClearAll: %v", reloaded.Settings())
	}
}

func TestStartQuickChat(t *testing.T) {
	m, _ := newTestChatManager(t)

	id, err := m.StartQuickChat(3)
	if err != nil {
		t.Fatalf("StartQuickChat returned error: %v", err)
	}
	chat, _ := m.Get(id)
	if chat.Title != "快速對話 3" {
		t.Errorf("Title = %q, want %q", chat.Title, "快速對話 3")
	}
	want := []ChatMessage{{Role: RoleUser, Content: QuickTopics[2]}}
	if !reflect.DeepEqual(chat.Messages, want) {
		t.Errorf("Messages = %+v, want %+v", chat.Messages, want)
	}

	for _, n := range []int{0, len(QuickTopics) + 1} {
		if _, err := m.StartQuickChat(n); !errors.Is(err, ErrUnknownTopic) {
			t.Errorf("StartQuickChat(%d) error = %v, want ErrUnknownTopic", n, err)
		}
	}
}
