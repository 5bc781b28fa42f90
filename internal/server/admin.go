package server

import (
	"html/template"
	"net/http"
	"time"
)

// Admin commands are an allow-list; the request may only pick one of these
// by name. Anything else is rejected.
var adminCommands = map[string]func(s *Server, repo string) bool{
	"increase_priority": func(s *Server, repo string) bool {
		h := s.manager.Get(repo)
		if h == nil {
			return false
		}
		h.IncreasePriority()
		return true
	},
	"decrease_priority": func(s *Server, repo string) bool {
		h := s.manager.Get(repo)
		if h == nil {
			return false
		}
		h.DecreasePriority()
		return true
	},
	"toggle_active": func(s *Server, repo string) bool {
		h := s.manager.Get(repo)
		if h == nil {
			return false
		}
		h.ToggleActive()
		if len(s.manager.Active()) < s.codec.K() {
			s.log.Warn("too many inactive repositories; reads cannot reach k",
				"active", len(s.manager.Active()), "k", s.codec.K())
		}
		return true
	},
	"reset_stats": func(s *Server, _ string) bool {
		s.stats.Reset()
		return true
	},
}

var adminPage = template.Must(template.New("admin").Parse(`<html>
<head><title>RACS server config</title></head>
<body>
<h1><a href="/racs">RACS control</a></h1>
<b>k = {{.K}}<br>m = {{.M}}</b><br>
<h3>Repositories</h3>
<table border="1">
 <tr><td>Name</td><td>Class</td><td>Fetch Priority</td><td>Active</td><td>Breaker</td></tr>
{{range .Repositories}} <tr><td>{{.Name}}</td><td>{{.Class}}</td>
  <td>{{.Priority}} <small><a href="/racs?cmd=increase_priority&repo={{.Name}}">+</a>|<a href="/racs?cmd=decrease_priority&repo={{.Name}}">-</a></small></td>
  <td>{{.Active}} <small><a href="/racs?cmd=toggle_active&repo={{.Name}}">toggle</a></small></td>
  <td>{{.Breaker}}</td></tr>
{{end}}</table>
<h2>Stats</h2>
<pre>{{.Stats}}</pre>
<small><a href="/racs?cmd=reset_stats">Reset stats</a></small>
</body>
</html>
`))

type adminRepoView struct {
	Name     string
	Class    string
	Priority int
	Active   bool
	Breaker  string
}

type adminView struct {
	K            int
	M            int
	Repositories []adminRepoView
	Stats        string
}

// handleAdmin renders the status page and applies allow-listed commands.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodGet {
		s.sendStatus(w, http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	if cmd := query.Get("cmd"); cmd != "" {
		apply, ok := adminCommands[cmd]
		if !ok {
			s.sendStatus(w, http.StatusBadRequest)
			return
		}
		if !apply(s, query.Get("repo")) {
			s.sendStatus(w, http.StatusNotFound)
			return
		}
		http.Redirect(w, r, "/racs", http.StatusSeeOther)
		return
	}

	view := adminView{
		K:     s.codec.K(),
		M:     s.codec.M(),
		Stats: s.stats.Dump(),
	}
	for _, h := range s.manager.All() {
		view.Repositories = append(view.Repositories, adminRepoView{
			Name:     h.Name(),
			Class:    h.Class(),
			Priority: h.Priority(),
			Active:   h.Active(),
			Breaker:  h.BreakerState().String(),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminPage.Execute(w, view); err != nil {
		s.log.Error("rendering admin page", "error", err)
	}
	s.stats.RecordOperation("racs:admin", time.Since(start), 0, nil)
}
