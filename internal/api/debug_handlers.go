package api

import (
	"net/http"
	"time"

	"github.com/JakeFAU/jobboard-prerender/internal/botdetect"
	"github.com/JakeFAU/jobboard-prerender/internal/prerender"
)

type goneStatus struct {
	Source     string  `json:"source"`
	Loaded     bool    `json:"loaded"`
	Size       int     `json:"size"`
	AgeSeconds float64 `json:"age_seconds"`
}

type edgeDebug struct {
	Timestamp  time.Time   `json:"timestamp"`
	Path       string      `json:"path"`
	UserAgent  string      `json:"user_agent"`
	IsBot      bool        `json:"is_bot"`
	BotType    string      `json:"bot_type"`
	BotClass   string      `json:"bot_class"`
	Handled    bool        `json:"handled"`
	Page       string      `json:"page,omitempty"`
	Slug       string      `json:"slug,omitempty"`
	Datastore  string      `json:"datastore"`
	BaseURL    string      `json:"base_url"`
	GoneListed bool        `json:"gone_listed"`
	GoneList   *goneStatus `json:"gone_list,omitempty"`
}

// debugEdge handles GET /debug/edge?path=&ua=. It reports how a crawler
// request for path would be classified without touching the datastore.
// Both parameters default to the debug request's own values.
func (s *Server) debugEdge(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}
	ua := r.URL.Query().Get("ua")
	if ua == "" {
		ua = r.UserAgent()
	}
	page, slug, handled := prerender.Match(path)
	info := edgeDebug{
		Timestamp: s.opts.Clock.Now().UTC(),
		Path:      path,
		UserAgent: ua,
		IsBot:     botdetect.IsBot(ua),
		BotType:   botdetect.Type(ua),
		BotClass:  botdetect.Class(ua),
		Handled:   handled,
		Page:      page,
		Slug:      slug,
		Datastore: "missing",
		BaseURL:   s.opts.Renderer.BaseURL(),
	}
	if s.opts.Prerender != nil && s.opts.Prerender.Configured() {
		info.Datastore = "set"
	}
	if c := s.opts.Gone; c != nil {
		st := &goneStatus{}
		if src := c.Source(); src != nil {
			st.Source = src.String()
		}
		var age time.Duration
		st.Size, age, st.Loaded = c.Stats()
		st.AgeSeconds = age.Seconds()
		info.GoneList = st
		if st.Loaded {
			info.GoneListed = c.Contains(r.Context(), path)
		}
	}
	w.Header().Set("X-Debug-Function", "true")
	writeJSON(w, http.StatusOK, info)
}
