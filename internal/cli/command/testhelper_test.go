package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const validLogin = `{"token":"tok-abcdefghijkl","userId":"u1","expiresIn":3600}`

// authServer is a scripted auth server.
type authServer struct {
	*httptest.Server

	mu           sync.Mutex
	loginStatus  int
	loginBody    string
	signupStatus int
	signupBody   string
	logins       []map[string]string
	signups      []map[string]string
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	s := &authServer{
		loginStatus:  http.StatusOK,
		loginBody:    validLogin,
		signupStatus: http.StatusCreated,
		signupBody:   `{"message":"User created!"}`,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *authServer) serve(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	var status int
	var body string
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		s.logins = append(s.logins, req)
		status, body = s.loginStatus, s.loginBody
	case r.Method == http.MethodPut && r.URL.Path == "/auth/signup":
		s.signups = append(s.signups, req)
		status, body = s.signupStatus, s.signupBody
	default:
		status, body = http.StatusNotFound, `{"message":"not found"}`
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *authServer) setLogin(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus, s.loginBody = status, body
}

func (s *authServer) setSignup(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signupStatus, s.signupBody = status, body
}

func (s *authServer) loginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logins)
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI runs the app with stdin and args (without the program name).
func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)

	err := app.Run(append([]string{"feedauth-cli"}, args...))
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

// cliEnv isolates HOME and returns a server plus the global flags that
// point at it and at a fresh data dir.
func cliEnv(t *testing.T) (*authServer, []string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	srv := newAuthServer(t)
	return srv, []string{"--server", srv.URL, "--data-dir", t.TempDir()}
}

func withArgs(base []string, more ...string) []string {
	out := make([]string, 0, len(base)+len(more))
	out = append(out, base...)
	return append(out, more...)
}

type statusJSON struct {
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
	Token         string `json:"token"`
	ExpiresAt     string `json:"expiresAt"`
	Remaining     string `json:"remaining"`
	Error         string `json:"error"`
}

func statusOf(t *testing.T, base []string) statusJSON {
	t.Helper()
	res := runCLI(t, "", withArgs(base, "-o", "json", "status")...)
	if res.err != nil {
		t.Fatalf("status: %v\n%s", res.err, res.stderr)
	}
	var st statusJSON
	if err := json.Unmarshal([]byte(res.stdout), &st); err != nil {
		t.Fatalf("decode status %q: %v", res.stdout, err)
	}
	return st
}
