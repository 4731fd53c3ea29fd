// Package notify delivers alert payloads to chat.
package notify

import (
	"strings"

	"github.com/yourusername/odds-watch/internal/alert"
	"github.com/yourusername/odds-watch/internal/config"
)

// LeagueRoute sends a league's alerts to its own chat. When Teams is set,
// games whose first opponent is listed go to ChatID and all others to AltChatID.
type LeagueRoute struct {
	ChatID    int64
	AltChatID int64
	Teams     map[string]bool
}

// Router decides which chats receive an alert.
type Router struct {
	mainChatID int64
	leagues    map[string]LeagueRoute
}

// NewRouter creates a router from the telegram configuration
func NewRouter(cfg config.TelegramConfig) *Router {
	r := &Router{
		mainChatID: cfg.MainChatID,
		leagues:    make(map[string]LeagueRoute, len(cfg.Leagues)),
	}
	for _, l := range cfg.Leagues {
		route := LeagueRoute{ChatID: l.ChatID, AltChatID: l.AltChatID}
		if len(l.Teams) > 0 {
			route.Teams = make(map[string]bool, len(l.Teams))
			for _, team := range l.Teams {
				route.Teams[strings.ToLower(team)] = true
			}
		}
		r.leagues[l.League] = route
	}
	return r
}

// Route returns the chat ids for a payload, main chat first.
func (r *Router) Route(p alert.Payload) []int64 {
	chats := []int64{r.mainChatID}

	route, ok := r.leagues[p.League]
	if !ok {
		return chats
	}

	target := route.ChatID
	if route.Teams != nil && !route.Teams[strings.ToLower(p.Opponent0)] {
		target = route.AltChatID
	}
	if target != 0 && target != r.mainChatID {
		chats = append(chats, target)
	}
	return chats
}
