package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/cwbudde/xpsfit/internal/store"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>xpsfit</title></head>
<body>
<h1>Fit jobs</h1>
<table border="1" cellpadding="4">
<tr><th>Job</th><th>Project</th><th>State</th><th>Evaluations</th><th>Cost</th><th>Started</th><th>Error</th></tr>
{{range .Jobs}}
<tr>
<td>{{.ID}}</td>
<td>{{.Config.ProjectID}}</td>
<td>{{.State}}</td>
<td>{{.Evaluations}}</td>
<td>{{printf "%.4g" .BestCost}}</td>
<td>{{.StartTime.Format "15:04:05"}}</td>
<td>{{.Error}}</td>
</tr>
{{end}}
</table>
<h1>Projects</h1>
<table border="1" cellpadding="4">
<tr><th>ID</th><th>Name</th><th>Spectrum</th><th>Peaks</th><th>Regions</th><th>Fitted</th><th>Updated</th></tr>
{{range .Projects}}
<tr>
<td>{{.ID}}</td>
<td>{{.Name}}</td>
<td>{{.SpectrumName}}</td>
<td>{{.PeakCount}}</td>
<td>{{.RegionCount}}</td>
<td>{{.Fitted}}</td>
<td>{{.UpdatedAt.Format "2006-01-02 15:04"}}</td>
</tr>
{{end}}
</table>
<p>Rendered {{.Now.Format "15:04:05"}}</p>
</body>
</html>
`))

type indexData struct {
	Jobs     []*Job
	Projects []store.ProjectInfo
	Now      time.Time
}

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	projects, err := s.store.ListProjects()
	if err != nil {
		http.Error(w, "Failed to list projects", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{
		Jobs:     s.jobManager.ListJobs(),
		Projects: projects,
		Now:      time.Now(),
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}
