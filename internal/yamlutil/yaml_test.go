package yamlutil_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-mailmerge/internal/yamlutil"
)

type testConfig struct {
	Name    string        `yaml:"name"`
	Count   int           `yaml:"count"`
	Timeout time.Duration `yaml:"timeout"`
	Tags    []string      `yaml:"tags"`
}

// ---------------------------------------------------------------------------
// TestUnmarshal
// ---------------------------------------------------------------------------

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	var cfg testConfig
	data := []byte("name: letters\ncount: 3\ntimeout: 90s\ntags: [a, b]\n")
	if err := yamlutil.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if cfg.Name != "letters" || cfg.Count != 3 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout)
	}
	if len(cfg.Tags) != 2 {
		t.Errorf("Tags = %v", cfg.Tags)
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		dest    any
		wantErr error
	}{
		{name: "nil data", data: nil, dest: &testConfig{}, wantErr: yamlutil.ErrNilData},
		{name: "empty data", data: []byte{}, dest: &testConfig{}, wantErr: yamlutil.ErrNilData},
		{name: "nil destination", data: []byte("name: x"), dest: nil, wantErr: yamlutil.ErrNilDestination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := yamlutil.Unmarshal(tt.data, tt.dest); !errors.Is(err, tt.wantErr) {
				t.Errorf("Unmarshal() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnmarshal_InvalidYAML(t *testing.T) {
	t.Parallel()

	var cfg testConfig
	err := yamlutil.Unmarshal([]byte("name: [unclosed"), &cfg)
	if err == nil {
		t.Fatal("Unmarshal() error = nil, want parse error")
	}
	if !strings.HasPrefix(err.Error(), "yamlutil:") {
		t.Errorf("error %q lacks yamlutil prefix", err)
	}
}

// ---------------------------------------------------------------------------
// TestStrict
// ---------------------------------------------------------------------------

func TestStrict(t *testing.T) {
	t.Parallel()

	data := []byte("name: x\nunknown: y\n")

	var lenient testConfig
	if err := yamlutil.Unmarshal(data, &lenient); err != nil {
		t.Errorf("lenient Unmarshal() error = %v", err)
	}

	var strict testConfig
	if err := yamlutil.Unmarshal(data, &strict, yamlutil.Strict()); err == nil {
		t.Error("strict Unmarshal() error = nil, want unknown field error")
	}
}

// ---------------------------------------------------------------------------
// TestInputSizeLimit
// ---------------------------------------------------------------------------

func TestInputSizeLimit(t *testing.T) {
	t.Parallel()

	big := []byte("name: " + strings.Repeat("x", yamlutil.MaxInputSize))
	var cfg testConfig
	if err := yamlutil.Unmarshal(big, &cfg); !errors.Is(err, yamlutil.ErrInputTooLarge) {
		t.Errorf("Unmarshal() error = %v, want ErrInputTooLarge", err)
	}
}
