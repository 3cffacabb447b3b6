package process

// Notes:
// - KillProcessGroup is only called with PIDs that cannot belong to this test
//   process group: 0 would target the current group.

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"
)

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()

	KillProcessGroup(999999999)
	KillProcessGroup(0)
	KillProcessGroup(-1)
}

func TestIsolate_CancelKillsProcess(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, sleep, "30")
	Isolate(cmd)

	start := time.Now()
	err = cmd.Run()
	if err == nil {
		t.Fatal("Run() error = nil, want killed")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("process survived cancellation for %v", elapsed)
	}
	if cmd.SysProcAttr == nil {
		t.Error("SysProcAttr not set")
	}
}

func TestIsolate_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("unused")
	Isolate(cmd)
	if cmd.Cancel == nil {
		t.Fatal("Cancel not set")
	}
	if err := cmd.Cancel(); err != nil {
		t.Errorf("Cancel() before start = %v, want nil", err)
	}
}
