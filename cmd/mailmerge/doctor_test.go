package main

// Notes:
// - Chrome and pandoc detection depend on the host; assertions only check
//   that the report is consistent with itself
// - Container detection tests modify environment variables, cannot use t.Parallel()

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestRunDoctorCmd_JSONOutput(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	env := &Environment{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	code := runDoctorCmd([]string{"--json"}, env)

	var result doctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout.String())
	}

	if result.Env.OS != runtime.GOOS || result.Env.Arch != runtime.GOARCH {
		t.Errorf("platform = %s/%s, want %s/%s", result.Env.OS, result.Env.Arch, runtime.GOOS, runtime.GOARCH)
	}
	if !result.System.TempWritable {
		t.Error("temp directory reported not writable")
	}
	if result.Pandoc.PDFEngine == "" {
		t.Error("pandoc PDF engine not reported")
	}

	noEngine := !result.Chrome.Found && !result.Pandoc.Found
	if noEngine != (result.Status == "errors") {
		t.Errorf("status = %q with chrome=%v pandoc=%v", result.Status, result.Chrome.Found, result.Pandoc.Found)
	}
	wantCode := ExitSuccess
	if result.Status == "errors" {
		wantCode = ExitGeneral
	}
	if code != wantCode {
		t.Errorf("exit code = %d, want %d for status %q", code, wantCode, result.Status)
	}
}

func TestRunDoctorCmd_HumanOutput(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	env := &Environment{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	runDoctorCmd(nil, env)

	out := stdout.String()
	for _, section := range []string{"mailmerge doctor", "Chrome/Chromium", "Pandoc", "Environment", "System", "Status:"} {
		if !strings.Contains(out, section) {
			t.Errorf("output missing %q:\n%s", section, out)
		}
	}
}

func TestIsContainer_ExplicitOverride(t *testing.T) {
	t.Setenv("MAILMERGE_CONTAINER", "1")

	got, hint := isContainer()
	if !got || hint != "MAILMERGE_CONTAINER=1" {
		t.Errorf("isContainer() = %v, %q", got, hint)
	}
}

func TestCheckPandoc_MissingBinary(t *testing.T) {
	t.Setenv("MAILMERGE_PANDOC_BIN", "mailmerge-no-such-pandoc")
	t.Setenv("MAILMERGE_PANDOC_ENGINE", "weasyprint")

	result := &doctorResult{}
	checkPandoc(result)

	if result.Pandoc.Found {
		t.Error("missing pandoc reported found")
	}
	if result.Pandoc.PDFEngine != "weasyprint" {
		t.Errorf("PDFEngine = %q, want weasyprint", result.Pandoc.PDFEngine)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "mailmerge-no-such-pandoc") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestCheckEngines(t *testing.T) {
	t.Parallel()

	none := &doctorResult{}
	checkEngines(none)
	if len(none.Errors) != 1 {
		t.Errorf("no engines: errors = %v, want one", none.Errors)
	}

	one := &doctorResult{Pandoc: pandocInfo{Found: true}}
	checkEngines(one)
	if len(one.Errors) != 0 {
		t.Errorf("pandoc only: errors = %v, want none", one.Errors)
	}
}
