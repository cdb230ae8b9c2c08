// Package indextest provides an in-process package index that speaks both
// the JSON and the XML-RPC protocol, for tests.
package indextest

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ippclub/pipstat/internal/model"
)

// Server is a fake index. Packages are served in the order their releases
// were added.
type Server struct {
	*httptest.Server

	mu       sync.RWMutex
	packages map[string]*model.ReleaseManifest
	failures int
	requests int
	throttle *throttle
}

// NewServer starts a fake index. Callers must Close it.
func NewServer() *Server {
	s := &Server{packages: make(map[string]*model.ReleaseManifest)}

	r := chi.NewRouter()
	s.RegisterRoutes(r)
	s.Server = httptest.NewServer(r)
	return s
}

// IndexURL is the base URL clients should use, ".../pypi".
func (s *Server) IndexURL() string {
	return s.URL + "/pypi"
}

// Add publishes a manifest under its name, replacing any previous one.
func (s *Server) Add(m *model.ReleaseManifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[m.Name] = m
}

// FailNext makes the next n requests answer 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests
}

// RegisterRoutes registers the index routes.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.countAndFail)
	r.Use(s.rateLimit)

	r.Route("/pypi", func(r chi.Router) {
		r.Post("/", s.xmlrpc)
		r.Get("/{name}/json", s.packageJSON)
	})
}

func (s *Server) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		fail := s.failures > 0
		if fail {
			s.failures--
		}
		s.mu.Unlock()

		if fail {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) lookup(name string) (*model.ReleaseManifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.packages[name]
	return m, ok
}

// packageJSON mimics GET /pypi/{name}/json.
func (s *Server) packageJSON(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, ok := s.lookup(name)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	buf.WriteString(`{"info":{"name":`)
	writeJSON(&buf, m.Name)
	if m.Intervals != nil {
		buf.WriteString(`,"downloads":`)
		writeJSON(&buf, map[string]int64{
			"last_day":   m.Intervals.LastDay,
			"last_week":  m.Intervals.LastWeek,
			"last_month": m.Intervals.LastMonth,
		})
	}
	buf.WriteString(`},"releases":{`)
	for i, rel := range m.Releases {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSON(&buf, rel.Version)
		buf.WriteByte(':')

		files := make([]map[string]interface{}, 0, len(rel.Files))
		for _, f := range rel.Files {
			entry := map[string]interface{}{
				"filename":  f.Filename,
				"downloads": f.Downloads,
			}
			if !f.UploadTime.IsZero() {
				entry["upload_time"] = f.UploadTime.UTC().Format("2006-01-02T15:04:05")
			}
			files = append(files, entry)
		}
		writeJSON(&buf, files)
	}
	buf.WriteString(`}}`)

	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func writeJSON(buf *bytes.Buffer, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	buf.Write(data)
}

type methodCall struct {
	MethodName string `xml:"methodName"`
	Params     []struct {
		Value struct {
			String string `xml:"string"`
			Text   string `xml:",chardata"`
		} `xml:"value"`
	} `xml:"params>param"`
}

func (c methodCall) param(i int) string {
	if i >= len(c.Params) {
		return ""
	}
	if v := c.Params[i].Value.String; v != "" {
		return v
	}
	return c.Params[i].Value.Text
}

// xmlrpc mimics the package_releases and release_urls methods.
func (s *Server) xmlrpc(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	var call methodCall
	if err := xml.Unmarshal(body, &call); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var value string
	switch call.MethodName {
	case "package_releases":
		value = "<array><data>"
		if m, ok := s.lookup(call.param(0)); ok {
			for _, rel := range m.Releases {
				value += "<value><string>" + escape(rel.Version) + "</string></value>"
			}
		}
		value += "</data></array>"
	case "release_urls":
		value = "<array><data>"
		if m, ok := s.lookup(call.param(0)); ok {
			for _, rel := range m.Releases {
				if rel.Version != call.param(1) {
					continue
				}
				for _, f := range rel.Files {
					value += fileStruct(f)
				}
			}
		}
		value += "</data></array>"
	default:
		writeFault(w, fmt.Sprintf("method %q is not supported", call.MethodName))
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0"?><methodResponse><params><param><value>%s</value></param></params></methodResponse>`, value)
}

func fileStruct(f model.File) string {
	s := "<value><struct>"
	s += member("filename", "<string>"+escape(f.Filename)+"</string>")
	s += member("downloads", fmt.Sprintf("<int>%d</int>", f.Downloads))
	if !f.UploadTime.IsZero() {
		s += member("upload_time", "<dateTime.iso8601>"+f.UploadTime.UTC().Format("20060102T15:04:05")+"</dateTime.iso8601>")
	}
	return s + "</struct></value>"
}

func member(name, value string) string {
	return "<member><name>" + name + "</name><value>" + value + "</value></member>"
}

func writeFault(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0"?><methodResponse><fault><value><struct>%s%s</struct></value></fault></methodResponse>`,
		member("faultCode", "<int>1</int>"),
		member("faultString", "<string>"+escape(msg)+"</string>"),
	)
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// Day returns noon UTC of the given day in May 2014, a convenient upload time.
func Day(d int) time.Time {
	return time.Date(2014, time.May, d, 12, 0, 0, 0, time.UTC)
}
