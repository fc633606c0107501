package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/researchmind/internal/exec"
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

func TestSimulated_Echo(t *testing.T) {
	s := NewSimulated("lit", 0)
	inv := models.Invocation{
		TaskID:     "task_000007",
		Capability: models.CapabilityLiterature,
		Payload:    json.RawMessage(`{"q":"x"}`),
		Context: map[models.Capability]json.RawMessage{
			models.CapabilityDatabase: json.RawMessage(`{}`),
		},
	}

	out, err := s.Invoke(context.Background(), inv)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	var res simulatedResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if res.Agent != "lit" || res.TaskID != "task_000007" || res.Capability != models.CapabilityLiterature {
		t.Errorf("result = %+v", res)
	}
	if string(res.Input) != `{"q":"x"}` {
		t.Errorf("Input = %s, want echoed payload", res.Input)
	}
	if len(res.Context) != 1 || res.Context[0] != "database" {
		t.Errorf("Context = %v, want [database]", res.Context)
	}
}

func TestSimulated_HonoursCancel(t *testing.T) {
	s := NewSimulated("lit", time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Invoke(ctx, models.Invocation{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Invoke() error = %v, want context.DeadlineExceeded", err)
	}
}

// fakeRunner records the command and returns a canned result.
type fakeRunner struct {
	got    exec.Command
	result exec.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, cmd exec.Command) (exec.Result, error) {
	f.got = cmd
	return f.result, f.err
}

func (f *fakeRunner) LookPath(name string) error {
	return f.err
}

func TestSubprocess(t *testing.T) {
	tests := []struct {
		name       string
		result     exec.Result
		err        error
		wantOut    string
		wantRemote bool
		wantErr    bool
	}{
		{
			name:    "success",
			result:  exec.Result{Stdout: []byte(`{"energy":-3.2}` + "\n")},
			wantOut: `{"energy":-3.2}`,
		},
		{
			name:       "non-zero exit",
			result:     exec.Result{ExitCode: 2, Stderr: []byte("bad structure\n")},
			wantRemote: true,
		},
		{
			name:       "invalid json",
			result:     exec.Result{Stdout: []byte("not json")},
			wantRemote: true,
		},
		{
			name:    "start failure",
			err:     errors.New("exec: not found"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{result: tt.result, err: tt.err}
			s := NewSubprocess("sim", r, "sim-worker", "--json")

			out, err := s.Invoke(context.Background(), models.Invocation{TaskID: "task_000001", Capability: models.CapabilitySimulation})

			if r.got.Name != "sim-worker" || len(r.got.Args) != 1 || r.got.Args[0] != "--json" {
				t.Errorf("command = %+v, want sim-worker --json", r.got)
			}
			var inv models.Invocation
			if err := json.Unmarshal(r.got.Stdin, &inv); err != nil || inv.TaskID != "task_000001" {
				t.Errorf("stdin = %s, want invocation JSON", r.got.Stdin)
			}

			switch {
			case tt.wantRemote:
				var re *RemoteError
				if !errors.As(err, &re) {
					t.Fatalf("error = %v, want *RemoteError", err)
				}
				if !errors.Is(err, models.ErrRemote) {
					t.Errorf("error does not match ErrRemote")
				}
			case tt.wantErr:
				if err == nil || errors.Is(err, models.ErrRemote) {
					t.Errorf("error = %v, want non-remote error", err)
				}
			default:
				if err != nil {
					t.Fatalf("Invoke() error = %v", err)
				}
				if string(out) != tt.wantOut {
					t.Errorf("Invoke() = %s, want %s", out, tt.wantOut)
				}
			}
		})
	}
}

func TestSubprocess_RemoteErrorMessage(t *testing.T) {
	r := &fakeRunner{result: exec.Result{ExitCode: 4, Stderr: []byte("  bad structure \n")}}
	_, err := NewSubprocess("sim", r, "w").Invoke(context.Background(), models.Invocation{})

	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *RemoteError", err)
	}
	if re.Code != 4 || re.Message != "bad structure" {
		t.Errorf("RemoteError = %+v, want code 4 message %q", re, "bad structure")
	}
}

func TestHTTP(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantOut    string
		wantErr    error
		wantRemote string
	}{
		{name: "ok", status: http.StatusOK, body: `{"rows":2}`, wantOut: `{"rows":2}`},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"missing formula"}`, wantErr: models.ErrRemote, wantRemote: "missing formula"},
		{name: "internal error", status: http.StatusInternalServerError, body: "boom", wantErr: models.ErrRemote, wantRemote: "boom"},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: models.ErrUnreachable},
		{name: "invalid json", status: http.StatusOK, body: "<html>", wantErr: models.ErrRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if got := r.Header.Get("X-Researchmind-Task"); got != "task_000001" {
					t.Errorf("task header = %q, want task_000001", got)
				}
				body, _ := io.ReadAll(r.Body)
				if !strings.Contains(string(body), `"capability":"database"`) {
					t.Errorf("body = %s, want invocation JSON", body)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h := NewHTTP("db", srv.URL, srv.Client())
			out, err := h.Invoke(context.Background(), models.Invocation{TaskID: "task_000001", Capability: models.CapabilityDatabase})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Invoke() error = %v, want %v", err, tt.wantErr)
				}
				var re *RemoteError
				if tt.wantRemote != "" && (!errors.As(err, &re) || re.Message != tt.wantRemote) {
					t.Errorf("RemoteError = %v, want message %q", err, tt.wantRemote)
				}
				return
			}
			if err != nil {
				t.Fatalf("Invoke() error = %v", err)
			}
			if string(out) != tt.wantOut {
				t.Errorf("Invoke() = %s, want %s", out, tt.wantOut)
			}
		})
	}
}

func TestHTTP_ConnectionRefusedIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := newProxyFor(t, "db", NewHTTP("db", url, nil))

	_, err := p.Invoke(context.Background(), "db", models.Invocation{TaskID: "t", Capability: models.CapabilityDatabase}, time.Second)
	if !errors.Is(err, models.ErrUnreachable) {
		t.Errorf("Invoke() error = %v, want ErrUnreachable", err)
	}
}

func newProxyFor(t *testing.T, id string, tr Transport) *Proxy {
	t.Helper()
	reg, err := registry.New([]models.AgentDescriptor{
		{ID: id, Capabilities: []models.Capability{models.CapabilityDatabase}},
	}, nil)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return NewProxy(manager.New(reg, manager.DefaultConfig()), map[string]Transport{id: tr})
}

func TestHTTP_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	if err := NewHTTP("db", srv.URL, srv.Client()).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v, want nil for 405", err)
	}
}

func TestAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "three candidate phases"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	a, err := NewAnthropic("llm", AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL}, "You are a literature agent.")
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	out, err := a.Invoke(context.Background(), models.Invocation{TaskID: "t", Capability: models.CapabilityLiterature})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if string(out) != `{"text":"three candidate phases"}` {
		t.Errorf("Invoke() = %s", out)
	}
	if in, outTok, calls := a.Usage().Total(); in != 12 || outTok != 4 || calls != 1 {
		t.Errorf("Usage().Total() = %d, %d, %d, want 12, 4, 1", in, outTok, calls)
	}
}

func TestAnthropic_ErrorClassification(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusBadRequest, models.ErrRemote},
		{http.StatusTooManyRequests, models.ErrUnreachable},
		{http.StatusInternalServerError, models.ErrUnreachable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`))
			}))
			defer srv.Close()

			a, err := NewAnthropic("llm", AnthropicConfig{APIKey: "k", BaseURL: srv.URL}, "")
			if err != nil {
				t.Fatalf("NewAnthropic() error = %v", err)
			}
			if _, err := a.Invoke(context.Background(), models.Invocation{}); !errors.Is(err, tt.wantErr) {
				t.Errorf("Invoke() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnthropic_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropic("llm", AnthropicConfig{}, ""); err == nil {
		t.Error("NewAnthropic() without key succeeded, want error")
	}
}

func TestNewTransport(t *testing.T) {
	tests := []struct {
		name    string
		spec    models.TransportSpec
		want    string
		wantErr bool
	}{
		{name: "simulated", spec: models.TransportSpec{Kind: models.TransportSimulated}, want: "*agent.Simulated"},
		{name: "default", spec: models.TransportSpec{}, want: "*agent.Simulated"},
		{name: "exec", spec: models.TransportSpec{Kind: models.TransportExec, Command: "w"}, want: "*agent.Subprocess"},
		{name: "exec without command", spec: models.TransportSpec{Kind: models.TransportExec}, wantErr: true},
		{name: "http", spec: models.TransportSpec{Kind: models.TransportHTTP, URL: "http://localhost:1"}, want: "*agent.HTTP"},
		{name: "http without url", spec: models.TransportSpec{Kind: models.TransportHTTP}, wantErr: true},
		{name: "unknown", spec: models.TransportSpec{Kind: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransport(models.AgentDescriptor{ID: "a", Transport: tt.spec}, Deps{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTransport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := fmt.Sprintf("%T", tr); got != tt.want {
				t.Errorf("NewTransport() type = %s, want %s", got, tt.want)
			}
		})
	}
}
