package mock

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// 1x1 transparent PNG.
var blankPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Server speaks enough of the Appium wire protocol to drive the simulated app.
type Server struct {
	app *app
	mux *http.ServeMux

	mu       sync.Mutex
	sessions map[string]bool
	srv      *http.Server
	url      string
}

// NewServer creates a simulated device. Use it as an http.Handler (for
// httptest) or call Start to serve on a loopback port.
func NewServer(opts Options) *Server {
	s := &Server{
		app:      newApp(opts),
		mux:      http.NewServeMux(),
		sessions: make(map[string]bool),
	}
	s.routes()
	return s
}

// Start serves on an ephemeral loopback port and returns the base URL.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("mock listen: %w", err)
	}
	s.mu.Lock()
	s.srv = &http.Server{Handler: s}
	s.url = "http://" + ln.Addr().String()
	srv := s.srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mock server: %v", err)
		}
	}()
	logger.Info("mock device listening on %s", s.url)
	return s.url, nil
}

// Close stops a server started with Start.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	err := s.srv.Close()
	s.srv = nil
	return err
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Items returns the current list contents.
func (s *Server) Items() []Item {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	s.app.settle()
	return append([]Item(nil), s.app.items...)
}

// Screen returns what the device currently shows.
func (s *Server) Screen() Screen {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	s.app.settle()
	return s.app.screen()
}

// Foreground returns the package in front.
func (s *Server) Foreground() string {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	return s.app.foreground
}

func (s *Server) routes() {
	m := s.mux
	m.HandleFunc("GET /status", s.handleStatus)
	m.HandleFunc("POST /session", s.handleNewSession)
	m.HandleFunc("DELETE /session/{sid}", s.session(s.handleDeleteSession))
	m.HandleFunc("GET /session/{sid}/window/rect", s.session(s.handleWindowRect))
	m.HandleFunc("POST /session/{sid}/appium/settings", s.session(s.handleNoop))
	m.HandleFunc("POST /session/{sid}/timeouts", s.session(s.handleNoop))
	m.HandleFunc("POST /session/{sid}/execute/sync", s.session(s.handleNoop))
	m.HandleFunc("POST /session/{sid}/element", s.session(s.handleFindElement))
	m.HandleFunc("POST /session/{sid}/elements", s.session(s.handleFindElements))
	m.HandleFunc("POST /session/{sid}/element/{eid}/click", s.session(s.handleClick))
	m.HandleFunc("POST /session/{sid}/element/{eid}/clear", s.session(s.handleClear))
	m.HandleFunc("POST /session/{sid}/element/{eid}/value", s.session(s.handleValue))
	m.HandleFunc("GET /session/{sid}/element/{eid}/text", s.session(s.handleText))
	m.HandleFunc("GET /session/{sid}/element/{eid}/attribute/{name}", s.session(s.handleAttribute))
	m.HandleFunc("GET /session/{sid}/element/{eid}/displayed", s.session(s.handleDisplayed))
	m.HandleFunc("GET /session/{sid}/appium/device/current_package", s.session(s.handleCurrentPackage))
	m.HandleFunc("POST /session/{sid}/appium/device/activate_app", s.session(s.handleActivateApp))
	m.HandleFunc("POST /session/{sid}/appium/device/terminate_app", s.session(s.handleTerminateApp))
	m.HandleFunc("POST /session/{sid}/back", s.session(s.handleBack))
	m.HandleFunc("GET /session/{sid}/contexts", s.session(s.handleContexts))
	m.HandleFunc("GET /session/{sid}/source", s.session(s.handleSource))
	m.HandleFunc("GET /session/{sid}/screenshot", s.session(s.handleScreenshot))
	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown command", r.Method+" "+r.URL.Path)
	})
}

// session guards a handler with the session-id check and the app lock.
func (s *Server) session(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := s.sessions[r.PathValue("sid")]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "invalid session id", "session "+r.PathValue("sid")+" does not exist")
			return
		}
		s.app.mu.Lock()
		defer s.app.mu.Unlock()
		h(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, map[string]interface{}{"ready": true, "message": "mock device ready"})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Capabilities struct {
			AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
		} `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	caps := body.Capabilities.AlwaysMatch

	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = true
	s.mu.Unlock()

	s.app.mu.Lock()
	noReset, _ := caps["appium:noReset"].(bool)
	if noReset && s.app.foreground == s.app.opts.AppPackage {
		s.app.invalidate()
	} else {
		s.app.launch()
	}
	s.app.mu.Unlock()

	logger.Debug("mock session %s created", id)
	writeValue(w, map[string]interface{}{
		"sessionId": id,
		"capabilities": map[string]interface{}{
			"platformName":   "Android",
			"automationName": "UiAutomator2",
			"deviceName":     "mock",
		},
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.sessions, r.PathValue("sid"))
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleWindowRect(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, map[string]interface{}{"x": 0, "y": 0, "width": 1080, "height": 2400})
}

func (s *Server) handleNoop(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, nil)
}

func (s *Server) find(w http.ResponseWriter, r *http.Request) ([]*element, bool) {
	var body struct {
		Using string `json:"using"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return nil, false
	}

	var match predicate
	switch body.Using {
	case "accessibility id":
		match = func(e *element) bool { return e.desc == body.Value }
	case "class name":
		match = func(e *element) bool { return e.class == body.Value }
	case "-android uiautomator":
		p, err := parseUiSelector(body.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid selector", err.Error())
			return nil, false
		}
		match = p
	default:
		writeError(w, http.StatusBadRequest, "invalid selector", "unsupported locator strategy "+body.Using)
		return nil, false
	}

	var out []*element
	for _, e := range s.app.elements() {
		if match(e) {
			out = append(out, e)
		}
	}
	return out, true
}

func (s *Server) handleFindElement(w http.ResponseWriter, r *http.Request) {
	found, ok := s.find(w, r)
	if !ok {
		return
	}
	if len(found) == 0 {
		writeError(w, http.StatusNotFound, "no such element", "An element could not be located on the page using the given search parameters.")
		return
	}
	writeValue(w, map[string]interface{}{w3cElementKey: found[0].id})
}

func (s *Server) handleFindElements(w http.ResponseWriter, r *http.Request) {
	found, ok := s.find(w, r)
	if !ok {
		return
	}
	refs := make([]interface{}, 0, len(found))
	for _, e := range found {
		refs = append(refs, map[string]interface{}{w3cElementKey: e.id})
	}
	writeValue(w, refs)
}

// element resolves the {eid} path value, writing the W3C error if it fails.
func (s *Server) element(w http.ResponseWriter, r *http.Request) (*element, bool) {
	e, stale := s.app.lookup(r.PathValue("eid"))
	if e != nil {
		return e, true
	}
	if stale {
		writeError(w, http.StatusNotFound, "stale element reference", "The element '"+r.PathValue("eid")+"' is not linked to the same object in DOM anymore")
	} else {
		writeError(w, http.StatusNotFound, "no such element", "The element '"+r.PathValue("eid")+"' does not exist")
	}
	return nil, false
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	s.app.click(e)
	writeValue(w, nil)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	s.app.clear(e)
	writeValue(w, nil)
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	var body struct {
		Text  string   `json:"text"`
		Value []string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	text := body.Text
	if text == "" {
		text = strings.Join(body.Value, "")
	}
	if !s.app.sendKeys(e, text) {
		writeError(w, http.StatusBadRequest, "invalid element state", "element is not editable")
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	writeValue(w, e.text)
}

func (s *Server) handleAttribute(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	if v, ok := e.attribute(r.PathValue("name")); ok {
		writeValue(w, v)
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleDisplayed(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	writeValue(w, e.displayed)
}

func (s *Server) handleCurrentPackage(w http.ResponseWriter, _ *http.Request) {
	s.app.settle()
	writeValue(w, s.app.foreground)
}

func appID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body struct {
		AppID    string `json:"appId"`
		BundleID string `json:"bundleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return "", false
	}
	if body.AppID == "" {
		body.AppID = body.BundleID
	}
	if body.AppID == "" {
		writeError(w, http.StatusBadRequest, "invalid argument", "appId is required")
		return "", false
	}
	return body.AppID, true
}

func (s *Server) handleActivateApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}
	s.app.activate(id)
	writeValue(w, nil)
}

func (s *Server) handleTerminateApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}
	writeValue(w, s.app.terminate(id))
}

func (s *Server) handleBack(w http.ResponseWriter, _ *http.Request) {
	s.app.settle()
	s.app.back()
	writeValue(w, nil)
}

func (s *Server) handleContexts(w http.ResponseWriter, _ *http.Request) {
	contexts := []string{"NATIVE_APP"}
	switch s.app.screen() {
	case ScreenBrowser, ScreenWebView:
		contexts = append(contexts, "WEBVIEW_chrome")
	}
	writeValue(w, contexts)
}

func (s *Server) handleSource(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, renderSource(s.app.elements()))
}

func (s *Server) handleScreenshot(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, base64.StdEncoding.EncodeToString(blankPNG))
}

func writeValue(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": v})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{"error": code, "message": msg},
	})
}
