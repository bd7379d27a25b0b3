package appium

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]interface{}{
		"value": map[string]interface{}{"error": code, "message": msg},
	})
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode body %q: %v", data, err)
	}
	return body
}

func newSessionClient(server *httptest.Server) *Client {
	client := NewClient(server.URL)
	client.sessionID = "test-session"
	return client
}

func TestClient_Connect(t *testing.T) {
	var gotCaps map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/session" && r.Method == "POST":
			body := decodeBody(t, r)
			caps := body["capabilities"].(map[string]interface{})
			gotCaps = caps["alwaysMatch"].(map[string]interface{})
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{
					"sessionId": "test-session-123",
					"capabilities": map[string]interface{}{
						"platformName": "Android",
					},
				},
			})
		case r.URL.Path == "/session/test-session-123/window/rect":
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{"width": 1080.0, "height": 2400.0},
			})
		case r.URL.Path == "/session/test-session-123/appium/settings":
			writeJSON(w, map[string]interface{}{"value": nil})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Connect(map[string]interface{}{"platformName": "Android"})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if client.SessionID() != "test-session-123" {
		t.Errorf("Expected sessionID 'test-session-123', got '%s'", client.SessionID())
	}
	if client.Platform() != "android" {
		t.Errorf("Expected platform 'android', got '%s'", client.Platform())
	}
	if w, h := client.ScreenSize(); w != 1080 || h != 2400 {
		t.Errorf("Expected screen size 1080x2400, got %dx%d", w, h)
	}
	if gotCaps["platformName"] != "Android" {
		t.Errorf("capabilities not sent under alwaysMatch: %v", gotCaps)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, "session not created", "device offline")
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Connect(map[string]interface{}{})
	if !errors.Is(err, core.ErrSessionFailed) {
		t.Fatalf("expected ErrSessionFailed, got %v", err)
	}
	if client.SessionID() != "" {
		t.Error("sessionID should stay empty on failure")
	}
}

func TestClient_Disconnect(t *testing.T) {
	deleteCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session" && r.Method == "DELETE" {
			deleteCalled = true
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newSessionClient(server)
	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if !deleteCalled {
		t.Error("DELETE /session was not called")
	}
	if client.SessionID() != "" {
		t.Error("sessionID should be cleared after disconnect")
	}

	// Second disconnect is a no-op.
	deleteCalled = false
	if err := client.Disconnect(); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}
	if deleteCalled {
		t.Error("second Disconnect should not call the server")
	}
}

func TestClient_FindElement(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element" && r.Method == "POST" {
			body = decodeBody(t, r)
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{w3cElementKey: "elem-123"},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newSessionClient(server)
	elemID, err := client.FindElement(StrategyAccessibilityID, "Shopping List")
	if err != nil {
		t.Fatalf("FindElement failed: %v", err)
	}
	if elemID != "elem-123" {
		t.Errorf("Expected element ID 'elem-123', got '%s'", elemID)
	}
	if body["using"] != "accessibility id" || body["value"] != "Shopping List" {
		t.Errorf("unexpected request body: %v", body)
	}
}

func TestClient_FindElementLegacyID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"ELEMENT": "legacy-1"},
		})
	}))
	defer server.Close()

	client := newSessionClient(server)
	elemID, err := client.FindElement(StrategyClassName, "android.widget.Button")
	if err != nil {
		t.Fatalf("FindElement failed: %v", err)
	}
	if elemID != "legacy-1" {
		t.Errorf("Expected 'legacy-1', got '%s'", elemID)
	}
}

func TestClient_FindElementNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such element", "An element could not be located")
	}))
	defer server.Close()

	client := newSessionClient(server)
	_, err := client.FindElement(StrategyAccessibilityID, "Gmail")
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		t.Fatalf("expected WebDriverError in chain, got %v", err)
	}
	if wdErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", wdErr.Status)
	}
}

func TestClient_FindElements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/elements" {
			writeJSON(w, map[string]interface{}{
				"value": []interface{}{
					map[string]interface{}{w3cElementKey: "a"},
					map[string]interface{}{w3cElementKey: "b"},
					map[string]interface{}{"unexpected": "c"},
				},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newSessionClient(server)
	ids, err := client.FindElements(StrategyUiAutomator, `new UiSelector().className("android.widget.Button")`)
	if err != nil {
		t.Fatalf("FindElements failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want [a b]", ids)
	}
}

func TestClient_FindElementsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"value": []interface{}{}})
	}))
	defer server.Close()

	client := newSessionClient(server)
	ids, err := client.FindElements(StrategyClassName, "android.widget.EditText")
	if err != nil {
		t.Fatalf("FindElements failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestClient_ElementActions(t *testing.T) {
	var paths []string
	var valueBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/session/test-session/element/e1/value" {
			valueBody = decodeBody(t, r)
		}
		writeJSON(w, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	client := newSessionClient(server)
	if err := client.ClickElement("e1"); err != nil {
		t.Fatalf("ClickElement: %v", err)
	}
	if err := client.ClearElement("e1"); err != nil {
		t.Fatalf("ClearElement: %v", err)
	}
	if err := client.SetElementValue("e1", "Milk"); err != nil {
		t.Fatalf("SetElementValue: %v", err)
	}

	want := []string{
		"POST /session/test-session/element/e1/click",
		"POST /session/test-session/element/e1/clear",
		"POST /session/test-session/element/e1/value",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if valueBody["text"] != "Milk" {
		t.Errorf("text = %v, want Milk", valueBody["text"])
	}
	if chars, ok := valueBody["value"].([]interface{}); !ok || len(chars) != 4 {
		t.Errorf("value = %v, want 4 chars", valueBody["value"])
	}
}

func TestClient_ElementProperties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/test-session/element/e1/text":
			writeJSON(w, map[string]interface{}{"value": "Milk"})
		case "/session/test-session/element/e1/attribute/content-desc":
			writeJSON(w, map[string]interface{}{"value": "Milk\nx2"})
		case "/session/test-session/element/e1/attribute/resource-id":
			writeJSON(w, map[string]interface{}{"value": nil})
		case "/session/test-session/element/e1/displayed":
			writeJSON(w, map[string]interface{}{"value": true})
		case "/session/test-session/element/stale/text":
			writeError(w, http.StatusNotFound, "stale element reference", "element is not attached")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newSessionClient(server)

	text, err := client.GetElementText("e1")
	if err != nil || text != "Milk" {
		t.Errorf("GetElementText = %q, %v", text, err)
	}
	desc, err := client.GetElementAttribute("e1", "content-desc")
	if err != nil || desc != "Milk\nx2" {
		t.Errorf("GetElementAttribute = %q, %v", desc, err)
	}
	rid, err := client.GetElementAttribute("e1", "resource-id")
	if err != nil || rid != "" {
		t.Errorf("null attribute = %q, %v; want empty", rid, err)
	}
	displayed, err := client.IsElementDisplayed("e1")
	if err != nil || !displayed {
		t.Errorf("IsElementDisplayed = %v, %v", displayed, err)
	}

	_, err = client.GetElementText("stale")
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) || !wdErr.IsStale() {
		t.Errorf("expected stale element error, got %v", err)
	}
}

func TestClient_AppManagement(t *testing.T) {
	var activated, terminated string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/test-session/appium/device/current_package":
			writeJSON(w, map[string]interface{}{"value": "com.android.chrome"})
		case "/session/test-session/appium/device/activate_app":
			activated, _ = decodeBody(t, r)["appId"].(string)
			writeJSON(w, map[string]interface{}{"value": nil})
		case "/session/test-session/appium/device/terminate_app":
			terminated, _ = decodeBody(t, r)["appId"].(string)
			writeJSON(w, map[string]interface{}{"value": true})
		case "/session/test-session/back":
			writeJSON(w, map[string]interface{}{"value": nil})
		case "/session/test-session/contexts":
			writeJSON(w, map[string]interface{}{"value": []interface{}{"NATIVE_APP", "WEBVIEW_chrome"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newSessionClient(server)

	pkg, err := client.CurrentPackage()
	if err != nil || pkg != "com.android.chrome" {
		t.Errorf("CurrentPackage = %q, %v", pkg, err)
	}
	if err := client.ActivateApp("com.example.my_app"); err != nil {
		t.Fatalf("ActivateApp: %v", err)
	}
	if activated != "com.example.my_app" {
		t.Errorf("activated = %q", activated)
	}
	if err := client.TerminateApp("com.android.chrome"); err != nil {
		t.Fatalf("TerminateApp: %v", err)
	}
	if terminated != "com.android.chrome" {
		t.Errorf("terminated = %q", terminated)
	}
	if err := client.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	contexts, err := client.Contexts()
	if err != nil || len(contexts) != 2 || contexts[1] != "WEBVIEW_chrome" {
		t.Errorf("Contexts = %v, %v", contexts, err)
	}
}

func TestClient_ScreenshotAndSource(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/test-session/screenshot":
			writeJSON(w, map[string]interface{}{"value": base64.StdEncoding.EncodeToString(png)})
		case "/session/test-session/source":
			writeJSON(w, map[string]interface{}{"value": "<hierarchy/>"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newSessionClient(server)
	data, err := client.Screenshot()
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if string(data) != string(png) {
		t.Errorf("Screenshot = %v, want %v", data, png)
	}
	src, err := client.Source()
	if err != nil || src != "<hierarchy/>" {
		t.Errorf("Source = %q, %v", src, err)
	}
}

func TestClient_SetImplicitWait(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		writeJSON(w, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	client := newSessionClient(server)
	if err := client.SetImplicitWait(1500 * time.Millisecond); err != nil {
		t.Fatalf("SetImplicitWait: %v", err)
	}
	if body["implicit"] != 1500.0 {
		t.Errorf("implicit = %v, want 1500", body["implicit"])
	}
}

func TestClient_ExecuteMobile(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		writeJSON(w, map[string]interface{}{"value": "ok"})
	}))
	defer server.Close()

	client := newSessionClient(server)
	v, err := client.ExecuteMobile("pressKey", map[string]interface{}{"keycode": 4})
	if err != nil {
		t.Fatalf("ExecuteMobile: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %v", v)
	}
	if body["script"] != "mobile: pressKey" {
		t.Errorf("script = %v", body["script"])
	}
}

func TestClient_Status(t *testing.T) {
	ready := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"ready": ready, "message": "busy"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL + "/")
	if err := client.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}

	ready = false
	if err := client.Status(); !errors.Is(err, core.ErrServerUnreachable) {
		t.Errorf("expected ErrServerUnreachable, got %v", err)
	}
}

func TestClient_StatusUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url)
	if err := client.Status(); !errors.Is(err, core.ErrServerUnreachable) {
		t.Errorf("expected ErrServerUnreachable, got %v", err)
	}
}
