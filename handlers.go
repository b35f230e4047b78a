package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to HTTP status codes. Anything unknown is an
// upstream failure since every store and provider sits behind these calls.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrUnknownPage),
		errors.Is(err, ErrUnknownTopic):
		return http.StatusBadRequest
	case errors.Is(err, ErrChatNotFound),
		errors.Is(err, ErrFolderNotFound),
		errors.Is(err, ErrSymbolNotFound),
		errors.Is(err, ErrNoQuoteData):
		return http.StatusNotFound
	case errors.Is(err, ErrAssistantDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (ws *WebServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		ws.log.Warn("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// Navigation

func (ws *WebServer) getHome(c *gin.Context) {
	c.JSON(http.StatusOK, ws.session.Overview(c.Request.Context()))
}

func (ws *WebServer) getPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": ws.session.Page()})
}

func (ws *WebServer) setPage(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := ws.session.SetPage(req.Page); err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": ws.session.Page()})
}

// Chats

func (ws *WebServer) listChats(c *gin.Context) {
	c.JSON(http.StatusOK, ChatListResponse{
		Chats:         ws.session.Chats.List(),
		Folders:       ws.session.Chats.Folders(),
		CurrentChatID: ws.session.CurrentChatID(),
	})
}

func (ws *WebServer) createChat(c *gin.Context) {
	var req CreateChatRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	id := ws.session.CreateChat(req.Title)
	chat, _ := ws.session.Chats.Get(id)
	c.JSON(http.StatusCreated, chat)
}

func (ws *WebServer) searchChats(c *gin.Context) {
	query := c.Query("q")
	ids, err := ws.session.Chats.Search(query)
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Query: query, IDs: ids, Count: len(ids)})
}

func (ws *WebServer) getQuickTopics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": QuickTopics})
}

func (ws *WebServer) startQuickChat(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		badRequest(c, "topic number must be an integer")
		return
	}
	id, err := ws.session.StartQuickChat(n)
	if err != nil {
		ws.fail(c, err)
		return
	}
	chat, _ := ws.session.Chats.Get(id)
	c.JSON(http.StatusCreated, chat)
}

func (ws *WebServer) getChat(c *gin.Context) {
	chat, err := ws.session.SelectChat(c.Param("id"))
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (ws *WebServer) deleteChat(c *gin.Context) {
	if err := ws.session.DeleteChat(c.Param("id")); err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted"})
}

func (ws *WebServer) sendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	reply, err := ws.session.SendMessage(c.Request.Context(), id, strings.TrimSpace(req.Content))
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{ChatID: id, Reply: reply})
}

func (ws *WebServer) resetChat(c *gin.Context) {
	if err := ws.session.Chats.ResetMessages(c.Param("id")); err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat reset"})
}

func (ws *WebServer) moveChat(c *gin.Context) {
	var req MoveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := ws.session.Chats.MoveToFolder(c.Param("id"), req.Folder); err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat moved", "folder": req.Folder})
}

func (ws *WebServer) createFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := ws.session.Chats.CreateFolder(req.Name); err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"folders": ws.session.Chats.Folders()})
}

// Stocks

func (ws *WebServer) getWatchedStocks(c *gin.Context) {
	entries, err := ws.session.Watchlist.Quotes(c.Request.Context())
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (ws *WebServer) addWatchedStock(c *gin.Context) {
	var req AddStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := ws.session.Watchlist.Add(c.Request.Context(), req.Query)
	if err != nil {
		ws.fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Added {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (ws *WebServer) removeWatchedStock(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := ws.session.Watchlist.Remove(symbol); err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock removed successfully", "symbol": symbol})
}

func (ws *WebServer) suggestStocks(c *gin.Context) {
	query := c.Query("q")
	results := ws.session.Watchlist.Suggest(query)
	c.JSON(http.StatusOK, SuggestResponse{Query: query, Results: results, Count: len(results)})
}

func (ws *WebServer) refreshStocks(c *gin.Context) {
	ws.session.Market.ClearCache()
	c.JSON(http.StatusOK, gin.H{"message": "Market data cache cleared"})
}

func (ws *WebServer) getQuote(c *gin.Context) {
	q, err := ws.session.Market.GetQuote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (ws *WebServer) getHistory(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	days := 30
	if raw := c.Query("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = d
	}

	snaps, err := ws.session.Watchlist.History(symbol, days, time.Now())
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Symbol: symbol, Days: days, Count: len(snaps), Data: snaps})
}

func (ws *WebServer) getIndices(c *gin.Context) {
	c.JSON(http.StatusOK, ws.session.Market.GetIndices(c.Request.Context()))
}

// News

func (ws *WebServer) getNews(c *gin.Context) {
	items := ws.session.News.GetNews(c.Request.Context())
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		if n < len(items) {
			items = items[:n]
		}
	}
	c.JSON(http.StatusOK, NewsResponse{Items: items, Count: len(items)})
}

func (ws *WebServer) searchNews(c *gin.Context) {
	items, err := ws.session.News.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		ws.fail(c, err)
		return
	}
	resp := NewsResponse{Items: items, Count: len(items)}
	if len(items) == 0 {
		resp.Items = FallbackNews(time.Now())
		resp.Count = len(resp.Items)
		resp.Warning = "沒有找到相關新聞，顯示預設新聞"
	}
	c.JSON(http.StatusOK, resp)
}

func (ws *WebServer) refreshNews(c *gin.Context) {
	ws.session.News.Refresh()
	c.JSON(http.StatusOK, gin.H{"message": "News cache cleared"})
}

func (ws *WebServer) analyzeNews(c *gin.Context) {
	var req AnalyzeNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	analysis, err := ws.session.Assistant.AnalyzeNews(c.Request.Context(), NewsItem{Title: req.Title, Summary: req.Summary})
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// Recommendations, settings and data

func (ws *WebServer) getRecommendations(c *gin.Context) {
	recs, err := ws.session.Recommendations()
	if err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (ws *WebServer) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, ws.session.Settings())
}

func (ws *WebServer) updateSettings(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, ws.session.UpdateSettings(partial))
}

func (ws *WebServer) exportData(c *gin.Context) {
	exp, err := ws.session.Export()
	if err != nil {
		ws.fail(c, err)
		return
	}
	filename := "dashboard_backup_" + time.Now().In(taipei).Format("20060102_150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.IndentedJSON(http.StatusOK, exp)
}

func (ws *WebServer) clearData(c *gin.Context) {
	var req ClearDataRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if !req.Confirm && c.Query("confirm") != "true" {
		badRequest(c, "confirm=true is required to clear all data")
		return
	}
	if err := ws.session.ClearData(); err != nil {
		ws.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All chat data cleared"})
}

func (ws *WebServer) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ws.session.Status())
}
