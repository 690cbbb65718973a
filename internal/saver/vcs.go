package saver

import (
	"os"
	"os/exec"
	"path/filepath"
)

// snapshotVCS captures `git log` and `git diff` into the run directory
// so the exact code state can be reconstructed later. Best-effort: a
// missing git binary or a non-repository working directory only logs a
// warning.
func (s *Saver) snapshotVCS() {
	for _, sub := range []string{"log", "diff"} {
		out := filepath.Join(s.path, "git_"+sub+".txt")
		f, err := os.Create(out)
		if err != nil {
			s.log.Warnw("vcs snapshot skipped", "file", out, "error", err)
			continue
		}

		cmd := exec.Command("git", sub)
		cmd.Stdout = f
		if err := cmd.Run(); err != nil {
			s.log.Warnw("vcs snapshot failed", "command", "git "+sub, "error", err)
		}
		f.Close()
	}
}
