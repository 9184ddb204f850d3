package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeJSON(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fasthost.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestManagerGetters(t *testing.T) {
	m := NewManager()
	m.Set("Int", "42")
	m.Set("float", float64(7))
	m.Set("bool", "yes")
	m.Set("dur", "1.5s")
	m.Set("list", "a, b ,c")
	m.Set("name", "fast")

	if got := m.GetInt("int"); got != 42 {
		t.Errorf("GetInt = %d", got)
	}
	if got := m.GetInt("float"); got != 7 {
		t.Errorf("GetInt(float) = %d", got)
	}
	if got := m.GetInt("missing", 9); got != 9 {
		t.Errorf("GetInt default = %d", got)
	}
	if !m.GetBool("bool") {
		t.Error("GetBool = false")
	}
	if got := m.GetDuration("dur"); got != 1500*time.Millisecond {
		t.Errorf("GetDuration = %v", got)
	}
	if got := m.GetStringSlice("list"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("GetStringSlice = %q", got)
	}
	if got := m.GetString("name"); got != "fast" {
		t.Errorf("GetString = %q", got)
	}
	if got := m.GetString("int", "x"); got != "42" {
		t.Errorf("GetString(int) = %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FASTHOST_HOST__READ_TIMEOUT", "5s")
	t.Setenv("FASTHOST_REQUEST_ID", "true")
	t.Setenv("FASTHOSTX_IGNORED", "1")

	m := NewManager()
	m.LoadFromEnv(EnvPrefix)

	if got := m.GetString("host.read_timeout"); got != "5s" {
		t.Errorf("host.read_timeout = %q", got)
	}
	if !m.GetBool("request_id") {
		t.Error("request_id not loaded")
	}
	if _, ok := m.Get("x_ignored"); ok {
		t.Error("variable without the exact prefix was loaded")
	}
}

func TestUnmarshalNested(t *testing.T) {
	type inner struct {
		Timeout time.Duration `config:"timeout"`
		Tags    []string      `config:"tags"`
		Skip    string        `config:"-"`
	}
	type outer struct {
		Name  string
		Inner inner `config:"inner"`
		Count int   `config:"count"`
	}

	m := NewManager()
	m.Set("name", "svc")
	m.Set("inner.timeout", "2m")
	m.Set("inner.tags", []interface{}{"a", "b"})
	m.Set("inner.skip", "nope")

	got := outer{Count: 3}
	if err := m.Unmarshal("", &got); err != nil {
		t.Fatal(err)
	}
	want := outer{Name: "svc", Inner: inner{Timeout: 2 * time.Minute, Tags: []string{"a", "b"}}, Count: 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unmarshal = %+v, want %+v", got, want)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	var target struct {
		Count int `config:"count"`
	}
	m := NewManager()
	m.Set("count", "many")
	if err := m.Unmarshal("", &target); err == nil {
		t.Error("expected error for a non-numeric int")
	}
	if err := m.Unmarshal("", target); err == nil {
		t.Error("expected error for a non-pointer target")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load with no sources = %+v, want defaults", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeJSON(t, `{
		"host": {"prefixes": ["http://+:9000/"], "concurrency": 8, "read_timeout": "10s"},
		"log": {"level": "debug", "format": "json"},
		"metrics": {"enabled": true}
	}`)
	t.Setenv("FASTHOST_HOST__CONCURRENCY", "16")
	t.Setenv("FASTHOST_LOG__FORMAT", "text")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse([]string{"--concurrency=32", "--prefix=http://localhost:1/,http://localhost:2/"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Host.Concurrency != 32 {
		t.Errorf("concurrency = %d, want flag value 32", cfg.Host.Concurrency)
	}
	if want := []string{"http://localhost:1/", "http://localhost:2/"}; !reflect.DeepEqual(cfg.Host.Prefixes, want) {
		t.Errorf("prefixes = %q, want %q", cfg.Host.Prefixes, want)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log format = %q, want env value text", cfg.Log.Format)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want file value debug", cfg.Log.Level)
	}
	if cfg.Host.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout = %v", cfg.Host.ReadTimeout)
	}
	if cfg.Host.WriteTimeout != 30*time.Second {
		t.Errorf("write timeout = %v, want default", cfg.Host.WriteTimeout)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics not enabled from file")
	}
}

func TestLoadStaticDirFlagEnablesStatic(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse([]string{"--static-dir", "/srv/www"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Static.Enabled || cfg.Static.Dir != "/srv/www" {
		t.Errorf("static = %+v", cfg.Static)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"bad json", `{`, "parse JSON"},
		{"bad level", `{"log": {"level": "loud"}}`, "log.level"},
		{"bad policy", `{"host": {"shutdown_policy": "later"}}`, "shutdown_policy"},
		{"no prefixes", `{"host": {"prefixes": []}}`, "host.prefixes"},
		{"s3 without bucket", `{"s3": {"enabled": true}}`, "s3.bucket"},
		{"bad duration", `{"host": {"read_timeout": "soon"}}`, "host.read_timeout"},
		{"bad compression", `{"compression": {"level": 11}}`, "compression.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeJSON(t, tt.json), nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil); err == nil {
		t.Error("expected error for a missing file")
	}
}
