package command

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/feedauth-go/internal/storage"
	"github.com/yndnr/feedauth-go/pkg/crypto/adaptive"
)

func TestLoginStatusLogout_PersistAcrossRuns(t *testing.T) {
	srv, base := cliEnv(t)

	res := runCLI(t, "", withArgs(base, "login", "--email", "a@b.co", "--password", "secret1", "--no-input")...)
	if res.err != nil {
		t.Fatalf("login: %v\n%s", res.err, res.stderr)
	}
	if !strings.Contains(res.stdout, "Logged in as u1.") || !strings.Contains(res.stdout, "authenticated") {
		t.Errorf("login output:\n%s", res.stdout)
	}
	if srv.logins[0]["email"] != "a@b.co" || srv.logins[0]["password"] != "secret1" {
		t.Errorf("request = %v", srv.logins[0])
	}

	st := statusOf(t, base)
	if !st.Authenticated || st.State != "authenticated" || st.UserID != "u1" {
		t.Errorf("status after login = %+v", st)
	}
	if st.Token != "tok-...ijkl" {
		t.Errorf("token = %q, want redacted", st.Token)
	}
	if st.ExpiresAt == "" || st.Remaining == "" {
		t.Errorf("expiry missing: %+v", st)
	}

	res = runCLI(t, "", withArgs(base, "logout")...)
	if res.err != nil {
		t.Fatalf("logout: %v", res.err)
	}
	if !strings.Contains(res.stdout, "Logged out.") {
		t.Errorf("logout output: %q", res.stdout)
	}

	if st := statusOf(t, base); st.Authenticated || st.State != "anonymous" || st.UserID != "" {
		t.Errorf("status after logout = %+v", st)
	}
}

func TestLogin_RejectedCredentials(t *testing.T) {
	srv, base := cliEnv(t)
	srv.setLogin(http.StatusUnauthorized, `{"message":"Wrong password"}`)

	res := runCLI(t, "", withArgs(base, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")...)
	if ExitCode(res.err) != ExitAuthFailed {
		t.Fatalf("exit = %d, err = %v", ExitCode(res.err), res.err)
	}
	if !strings.Contains(res.err.Error(), "An Error Occurred: Wrong password") {
		t.Errorf("err = %v", res.err)
	}

	if st := statusOf(t, base); st.Authenticated {
		t.Error("failed login must not persist a session")
	}
}

func TestLogin_ValidationFailed(t *testing.T) {
	srv, base := cliEnv(t)
	srv.setLogin(http.StatusUnprocessableEntity, `{}`)

	res := runCLI(t, "", withArgs(base, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")...)
	if ExitCode(res.err) != ExitValidationFailed {
		t.Fatalf("exit = %d, err = %v", ExitCode(res.err), res.err)
	}
	if !strings.Contains(res.err.Error(), "Validation failed.") {
		t.Errorf("err = %v", res.err)
	}
}

func TestLogin_InvalidFormNeverReachesServer(t *testing.T) {
	srv, base := cliEnv(t)

	res := runCLI(t, "", withArgs(base, "login", "-e", "not-an-email", "-p", "abc", "--no-input")...)
	if ExitCode(res.err) != ExitFormInvalid {
		t.Fatalf("exit = %d, err = %v", ExitCode(res.err), res.err)
	}
	msg := res.err.Error()
	if !strings.Contains(msg, "email: Please enter a valid e-mail address.") || !strings.Contains(msg, "password:") {
		t.Errorf("err = %v", msg)
	}
	if srv.loginCount() != 0 {
		t.Errorf("server saw %d logins", srv.loginCount())
	}
}

func TestLogin_PromptsForMissingFields(t *testing.T) {
	srv, base := cliEnv(t)

	res := runCLI(t, "bad\na@b.co\nsecret1\n", withArgs(base, "login")...)
	if res.err != nil {
		t.Fatalf("login: %v\n%s", res.err, res.stderr)
	}
	for _, want := range []string{"Your E-Mail: ", "Please enter a valid e-mail address.", "Password: "} {
		if !strings.Contains(res.stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, res.stderr)
		}
	}
	if srv.loginCount() != 1 {
		t.Errorf("logins = %d", srv.loginCount())
	}
}

func TestLogin_InputEnds(t *testing.T) {
	_, base := cliEnv(t)
	res := runCLI(t, "a@b.co\n", withArgs(base, "login")...)
	if ExitCode(res.err) != ExitFormInvalid {
		t.Errorf("exit = %d, err = %v", ExitCode(res.err), res.err)
	}
}

func TestLogin_AlreadyAuthenticated(t *testing.T) {
	srv, base := cliEnv(t)
	login := withArgs(base, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")

	if res := runCLI(t, "", login...); res.err != nil {
		t.Fatalf("first login: %v", res.err)
	}
	res := runCLI(t, "", login...)
	if res.err == nil || !strings.Contains(res.err.Error(), "already logged in as u1") {
		t.Errorf("err = %v", res.err)
	}
	if srv.loginCount() != 1 {
		t.Errorf("second login reached the server")
	}
}

func TestLogin_NetworkError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	res := runCLI(t, "", "--server", url, "--ephemeral", "login", "-e", "a@b.co", "-p", "secret1", "--no-input")
	if ExitCode(res.err) != ExitNetwork {
		t.Fatalf("exit = %d, err = %v", ExitCode(res.err), res.err)
	}
	if !strings.Contains(res.err.Error(), "An unknown error occurred.") {
		t.Errorf("err = %v", res.err)
	}
}

func TestStatus_ExpiredSessionIsCleared(t *testing.T) {
	srv, base := cliEnv(t)
	srv.setLogin(http.StatusOK, `{"token":"tok-abcdefghijkl","userId":"u1","ttlMilliseconds":50}`)

	if res := runCLI(t, "", withArgs(base, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")...); res.err != nil {
		t.Fatalf("login: %v", res.err)
	}
	time.Sleep(150 * time.Millisecond)

	if st := statusOf(t, base); st.Authenticated || st.State != "anonymous" {
		t.Errorf("expired session restored: %+v", st)
	}
}

func TestLogin_DefaultTTLFromConfig(t *testing.T) {
	srv, base := cliEnv(t)
	srv.setLogin(http.StatusOK, `{"token":"tok-abcdefghijkl","userId":"u1"}`)
	t.Setenv("FEEDAUTH_SESSION_DEFAULT_TTL", "10m")

	if res := runCLI(t, "", withArgs(base, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")...); res.err != nil {
		t.Fatalf("login: %v", res.err)
	}
	st := statusOf(t, base)
	if st.Remaining != "10m0s" && st.Remaining != "9m59s" {
		t.Errorf("remaining = %q, want about 10m", st.Remaining)
	}
}

func TestEphemeralStoreForgetsSession(t *testing.T) {
	_, base := cliEnv(t)
	eph := withArgs(base, "--ephemeral")

	if res := runCLI(t, "", withArgs(eph, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")...); res.err != nil {
		t.Fatalf("login: %v", res.err)
	}
	if st := statusOf(t, eph); st.Authenticated {
		t.Error("ephemeral session survived the process")
	}
}

func TestLogin_TokenSealedAtRest(t *testing.T) {
	_, base := cliEnv(t)
	t.Setenv("FEEDAUTH_STORE_ENCRYPTION_KEY", "correct horse battery staple")
	dataDir := base[3]

	if res := runCLI(t, "", withArgs(base, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")...); res.err != nil {
		t.Fatalf("login: %v", res.err)
	}
	if st := statusOf(t, base); !st.Authenticated {
		t.Fatal("sealed session not restored")
	}

	kv, err := storage.NewBadgerEngine(storage.DefaultKVConfig(dataDir), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer kv.Close()

	var token string
	err = kv.Scan(context.Background(), []byte("feedauth/session/"), func(key, value []byte) bool {
		if strings.HasSuffix(string(key), "/"+storage.KeyToken) {
			token = string(value)
			return false
		}
		return true
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !adaptive.IsSealed(token) || strings.Contains(token, "tok-abcdefghijkl") {
		t.Errorf("stored token = %q, want sealed", token)
	}
}

func TestSignup(t *testing.T) {
	srv, base := cliEnv(t)

	res := runCLI(t, "", withArgs(base, "signup", "-e", "a@b.co", "-n", "Jane", "-p", "secret1", "--no-input")...)
	if res.err != nil {
		t.Fatalf("signup: %v\n%s", res.err, res.stderr)
	}
	if !strings.Contains(res.stdout, "Account created.") {
		t.Errorf("stdout = %q", res.stdout)
	}
	if got := srv.signups[0]; got["name"] != "Jane" || got["email"] != "a@b.co" {
		t.Errorf("request = %v", got)
	}
	if st := statusOf(t, base); st.Authenticated {
		t.Error("signup must not log in")
	}
}

func TestSignup_JSON(t *testing.T) {
	_, base := cliEnv(t)
	res := runCLI(t, "", withArgs(base, "-o", "json", "signup", "-e", "a@b.co", "-n", "Jane", "-p", "secret1", "--no-input")...)
	if res.err != nil {
		t.Fatalf("signup: %v", res.err)
	}
	if !strings.Contains(res.stdout, `"redirect": "/"`) {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	srv, base := cliEnv(t)
	srv.setSignup(http.StatusUnprocessableEntity, `{}`)

	res := runCLI(t, "", withArgs(base, "signup", "-e", "a@b.co", "-n", "Jane", "-p", "secret1", "--no-input")...)
	if ExitCode(res.err) != ExitValidationFailed {
		t.Fatalf("exit = %d, err = %v", ExitCode(res.err), res.err)
	}
	if !strings.Contains(res.err.Error(), "Make sure the email address isn't used yet!") {
		t.Errorf("err = %v", res.err)
	}
}

func TestSignup_ServerFailure(t *testing.T) {
	srv, base := cliEnv(t)
	srv.setSignup(http.StatusInternalServerError, `{}`)

	res := runCLI(t, "", withArgs(base, "signup", "-e", "a@b.co", "-n", "Jane", "-p", "secret1", "--no-input")...)
	if ExitCode(res.err) != ExitConflict {
		t.Fatalf("exit = %d, err = %v", ExitCode(res.err), res.err)
	}
	if !strings.Contains(res.err.Error(), "Creating a user failed!") {
		t.Errorf("err = %v", res.err)
	}
}

func TestDataDirCreated(t *testing.T) {
	_, base := cliEnv(t)
	dir := base[3] + "/nested"
	args := []string{base[0], base[1], "--data-dir", dir}

	if res := runCLI(t, "", withArgs(args, "status")...); res.err != nil {
		t.Fatalf("status: %v", res.err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLogin_CustomCA(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	scripted := &authServer{loginStatus: http.StatusOK, loginBody: validLogin}
	tlsSrv := httptest.NewTLSServer(http.HandlerFunc(scripted.serve))
	defer tlsSrv.Close()

	args := []string{"--server", tlsSrv.URL, "--ephemeral", "login", "-e", "a@b.co", "-p", "secret1", "--no-input"}
	if res := runCLI(t, "", args...); ExitCode(res.err) != ExitNetwork {
		t.Fatalf("untrusted server: exit = %d, err = %v", ExitCode(res.err), res.err)
	}

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: tlsSrv.Certificate().Raw})
	if err := os.WriteFile(caFile, caPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FEEDAUTH_SERVER_CA_FILE", caFile)

	if res := runCLI(t, "", args...); res.err != nil {
		t.Fatalf("trusted server: %v", res.err)
	}
	if scripted.loginCount() != 1 {
		t.Errorf("logins = %d", scripted.loginCount())
	}
}

func TestStatus_AllListsEveryServer(t *testing.T) {
	srv, base := cliEnv(t)
	other := newAuthServer(t)
	otherBase := []string{"--server", other.URL, "--data-dir", base[3]}
	for _, s := range []*authServer{srv, other} {
		s.setLogin(http.StatusOK, `{"token":"tok-abcdefghijkl","userId":"u1"}`)
	}

	for _, b := range [][]string{base, otherBase} {
		if res := runCLI(t, "", withArgs(b, "login", "-e", "a@b.co", "-p", "secret1", "--no-input")...); res.err != nil {
			t.Fatalf("login: %v\n%s", res.err, res.stderr)
		}
	}

	res := runCLI(t, "", withArgs(base, "-o", "json", "status", "--all")...)
	if res.err != nil {
		t.Fatalf("status --all: %v\n%s", res.err, res.stderr)
	}
	var rows []struct {
		Origin  string `json:"origin"`
		Current bool   `json:"current"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &rows); err != nil {
		t.Fatalf("decode %q: %v", res.stdout, err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2", rows)
	}
	current := 0
	for _, r := range rows {
		if r.Current {
			current++
			if r.Origin != srv.URL {
				t.Errorf("current origin = %q, want %q", r.Origin, srv.URL)
			}
		}
	}
	if current != 1 {
		t.Errorf("rows = %+v, want exactly one current", rows)
	}

	if res := runCLI(t, "", withArgs(otherBase, "logout")...); res.err != nil {
		t.Fatal(res.err)
	}
	res = runCLI(t, "", withArgs(base, "-o", "json", "status", "--all")...)
	if err := json.Unmarshal([]byte(res.stdout), &rows); err != nil || len(rows) != 1 {
		t.Errorf("after logout rows = %+v, %v", rows, err)
	}
}
